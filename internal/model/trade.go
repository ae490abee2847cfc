package model

import "time"

// TradeResult reports the outcome of one swap attempt.
type TradeResult struct {
	Ok      bool          `json:"ok"`
	Expired bool          `json:"expired,omitempty"`
	TxHash  string        `json:"tx_hash,omitempty"`
	GasUsed uint64        `json:"gas_used,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// DispatchDecision records whether the monitor invoked the action during a
// live run. The monitor never awaits Outcome itself; the caller may.
type DispatchDecision struct {
	Dispatched bool
	Candidate  Candidate
	Outcome    <-chan TradeResult
}
