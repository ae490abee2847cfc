package model

// CandidateReport is the normalized representation of one qualifying
// candidate for reporting.
type CandidateReport struct {
	Token       string       `json:"token"`
	Caller      string       `json:"caller"`
	BlockNumber uint64       `json:"block_number"`
	TxHash      string       `json:"tx_hash"`
	Verdict     string       `json:"verdict"`
	Trade       *TradeResult `json:"trade,omitempty"`
}

// ReplaySummary collects the outcome of one replay run over a block range.
type ReplaySummary struct {
	FromBlock uint64            `json:"from_block"`
	ToBlock   uint64            `json:"to_block"`
	Scanned   int               `json:"scanned"`
	Reports   []CandidateReport `json:"reports"`
}
