package detect

import (
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"tokenSniper/internal/model"
)

// FilterConfig describes the deployment event to match. EventSignature is
// the topic0 of the ownership-transfer event; PreviousOwner is the exact
// topic1 value, normally the zero hash so only freshly deployed contracts
// match. NewOwner, when set, additionally pins topic2 to a single deployer
// (the strict variant). Contracts optionally restricts emitting addresses.
type FilterConfig struct {
	EventSignature common.Hash
	PreviousOwner  common.Hash
	NewOwner       *common.Address
	Contracts      []common.Address
}

// EventFilter converts raw chain logs into candidates. Stateless; any
// malformed or non-matching log yields no candidate, never an error.
type EventFilter struct {
	cfg       FilterConfig
	contracts map[common.Address]struct{}
}

// NewEventFilter builds an EventFilter from the config.
func NewEventFilter(cfg FilterConfig) *EventFilter {
	contracts := make(map[common.Address]struct{}, len(cfg.Contracts))
	for _, address := range cfg.Contracts {
		contracts[address] = struct{}{}
	}
	return &EventFilter{cfg: cfg, contracts: contracts}
}

// Query returns the transport-level filter so the node drops irrelevant
// traffic before it reaches Decode.
func (f *EventFilter) Query() ethereum.FilterQuery {
	topics := [][]common.Hash{
		{f.cfg.EventSignature},
		{f.cfg.PreviousOwner},
	}
	if f.cfg.NewOwner != nil {
		topics = append(topics, []common.Hash{TopicFromAddress(*f.cfg.NewOwner)})
	}
	return ethereum.FilterQuery{
		Addresses: f.cfg.Contracts,
		Topics:    topics,
	}
}

// Decode extracts a candidate from a raw log. The token is the emitting
// contract; the apparent caller is the new-owner topic.
func (f *EventFilter) Decode(lg types.Log) (model.Candidate, bool) {
	if len(lg.Topics) < 3 {
		return model.Candidate{}, false
	}
	if lg.Topics[0] != f.cfg.EventSignature {
		return model.Candidate{}, false
	}
	if lg.Topics[1] != f.cfg.PreviousOwner {
		return model.Candidate{}, false
	}

	caller, ok := addressFromTopic(lg.Topics[2])
	if !ok {
		return model.Candidate{}, false
	}
	if f.cfg.NewOwner != nil && caller != *f.cfg.NewOwner {
		return model.Candidate{}, false
	}
	if len(f.contracts) > 0 {
		if _, ok := f.contracts[lg.Address]; !ok {
			return model.Candidate{}, false
		}
	}

	return model.Candidate{
		Token:       lg.Address,
		Caller:      caller,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
	}, true
}

// TopicFromAddress left-pads an address into a 32-byte topic value.
func TopicFromAddress(address common.Address) common.Hash {
	return common.BytesToHash(address.Bytes())
}

// addressFromTopic rejects topics whose upper 12 bytes are not zero; an
// indexed address parameter always arrives left-padded.
func addressFromTopic(topic common.Hash) (common.Address, bool) {
	for _, b := range topic[:common.HashLength-common.AddressLength] {
		if b != 0 {
			return common.Address{}, false
		}
	}
	return common.BytesToAddress(topic.Bytes()), true
}
