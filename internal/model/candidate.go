package model

import "github.com/ethereum/go-ethereum/common"

// Candidate is a token/deployer pair extracted from one matching log entry,
// pending classification. Immutable once constructed.
type Candidate struct {
	Token       common.Address
	Caller      common.Address
	BlockNumber uint64
	TxHash      common.Hash
}
