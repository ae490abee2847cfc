package detect

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testSignature = common.HexToHash("0x8be0079c531659141344cd1fd0a4f28419497f9722a3daafe3b4186f6b6457e0")
	testOwner     = common.HexToAddress("0xE220329659D41B2a9F26E83816B424bDAcF62567")
	testToken     = common.HexToAddress("0xa663bce14c020b0f98bce41cc8b2fb870c2be351")
)

func buildLog(topics []common.Hash) types.Log {
	return types.Log{
		Address:     testToken,
		Topics:      topics,
		BlockNumber: 31162358,
		TxHash:      common.HexToHash("0x01"),
	}
}

func matchingTopics() []common.Hash {
	return []common.Hash{
		testSignature,
		{},
		TopicFromAddress(testOwner),
	}
}

func TestEventFilterDecode(t *testing.T) {
	filter := NewEventFilter(FilterConfig{EventSignature: testSignature})

	candidate, ok := filter.Decode(buildLog(matchingTopics()))
	if !ok {
		t.Fatalf("expected match")
	}
	if candidate.Token != testToken {
		t.Fatalf("token mismatch: %s", candidate.Token.Hex())
	}
	if candidate.Caller != testOwner {
		t.Fatalf("caller mismatch: %s", candidate.Caller.Hex())
	}
	if candidate.BlockNumber != 31162358 {
		t.Fatalf("block number mismatch: %d", candidate.BlockNumber)
	}
}

func TestEventFilterDecodeRejects(t *testing.T) {
	filter := NewEventFilter(FilterConfig{EventSignature: testSignature})

	wrongSignature := matchingTopics()
	wrongSignature[0] = common.HexToHash("0xf9d151d23a5253296eb20ab40959cf48828ea2732d337416716e302ed83ca658")

	nonZeroPrevious := matchingTopics()
	nonZeroPrevious[1] = TopicFromAddress(testOwner)

	dirtyOwnerTopic := matchingTopics()
	dirtyOwnerTopic[2][0] = 0xff

	cases := []struct {
		name   string
		topics []common.Hash
	}{
		{"signature mismatch", wrongSignature},
		{"non-zero previous owner", nonZeroPrevious},
		{"owner topic not left-padded", dirtyOwnerTopic},
		{"too few topics", matchingTopics()[:2]},
		{"no topics", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := filter.Decode(buildLog(tc.topics)); ok {
				t.Fatalf("expected no match")
			}
		})
	}
}

func TestEventFilterStrictNewOwner(t *testing.T) {
	owner := testOwner
	filter := NewEventFilter(FilterConfig{
		EventSignature: testSignature,
		NewOwner:       &owner,
	})

	if _, ok := filter.Decode(buildLog(matchingTopics())); !ok {
		t.Fatalf("expected match for configured owner")
	}

	other := matchingTopics()
	other[2] = TopicFromAddress(common.HexToAddress("0x81F7cA6AF86D1CA6335E44A2C28bC88807491415"))
	if _, ok := filter.Decode(buildLog(other)); ok {
		t.Fatalf("expected no match for different owner")
	}
}

func TestEventFilterContractRestriction(t *testing.T) {
	filter := NewEventFilter(FilterConfig{
		EventSignature: testSignature,
		Contracts:      []common.Address{common.HexToAddress("0x71B8EFC8BCaD65a5D9386D07f2Dff57ab4EAf533")},
	})

	if _, ok := filter.Decode(buildLog(matchingTopics())); ok {
		t.Fatalf("expected no match for unlisted contract")
	}
}

func TestEventFilterQuery(t *testing.T) {
	owner := testOwner
	filter := NewEventFilter(FilterConfig{
		EventSignature: testSignature,
		NewOwner:       &owner,
	})

	query := filter.Query()
	if len(query.Topics) != 3 {
		t.Fatalf("expected 3 topic positions, got %d", len(query.Topics))
	}
	if query.Topics[0][0] != testSignature {
		t.Fatalf("topic0 mismatch")
	}
	if query.Topics[1][0] != (common.Hash{}) {
		t.Fatalf("previous owner position must be the zero hash")
	}
	if query.Topics[2][0] != TopicFromAddress(testOwner) {
		t.Fatalf("new owner position mismatch")
	}
}
