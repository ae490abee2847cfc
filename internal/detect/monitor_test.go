package detect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"tokenSniper/internal/model"
)

type fakeSubscription struct {
	errs chan error
}

func (s *fakeSubscription) Unsubscribe() {}

func (s *fakeSubscription) Err() <-chan error { return s.errs }

type fakeSource struct {
	logs []types.Log
}

func (f *fakeSource) SubscribeLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	go func() {
		for _, lg := range f.logs {
			select {
			case ch <- lg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return &fakeSubscription{errs: make(chan error)}, nil
}

func (f *fakeSource) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, query ethereum.FilterQuery) ([]types.Log, error) {
	var out []types.Log
	for _, lg := range f.logs {
		if lg.BlockNumber >= fromBlock && lg.BlockNumber <= toBlock {
			out = append(out, lg)
		}
	}
	return out, nil
}

type fakeAction struct {
	mu    sync.Mutex
	calls []common.Address
}

func (a *fakeAction) Act(ctx context.Context, token common.Address) <-chan model.TradeResult {
	a.mu.Lock()
	a.calls = append(a.calls, token)
	a.mu.Unlock()

	results := make(chan model.TradeResult, 1)
	results <- model.TradeResult{Ok: true, TxHash: "0xfeed", GasUsed: 21000}
	return results
}

func (a *fakeAction) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func wantedLog(block uint64, txSeed byte) types.Log {
	return types.Log{
		Address:     common.BytesToAddress([]byte{txSeed}),
		Topics:      matchingTopics(),
		BlockNumber: block,
		TxHash:      common.BytesToHash([]byte{txSeed}),
	}
}

func newTestMonitor(source LogSource, action Action) *Monitor {
	filter := NewEventFilter(FilterConfig{EventSignature: testSignature})
	classifier := NewClassifier(ClassifierConfig{
		Wanted:        testOwner,
		VerifyCallers: true,
	}, NewVerdictCache(), &fakeLookup{}, nil)
	return NewMonitor(MonitorConfig{BatchSize: 10}, filter, classifier, source, action, nil)
}

func TestLiveDispatchesAtMostOnce(t *testing.T) {
	source := &fakeSource{logs: []types.Log{
		wantedLog(100, 0x01),
		wantedLog(101, 0x02),
		wantedLog(102, 0x03),
	}}
	action := &fakeAction{}
	monitor := newTestMonitor(source, action)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	decision, err := monitor.Live(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Dispatched {
		t.Fatalf("expected a dispatch")
	}

	// The loop has terminated; give any stray dispatch a chance to land
	// before asserting.
	time.Sleep(50 * time.Millisecond)
	if got := action.callCount(); got != 1 {
		t.Fatalf("expected exactly one action invocation, got %d", got)
	}

	result := <-decision.Outcome
	if !result.Ok {
		t.Fatalf("expected trade success, got %+v", result)
	}
}

func TestLiveSkipsNonQualifyingEntries(t *testing.T) {
	rejected := wantedLog(100, 0x01)
	rejected.Topics = append([]common.Hash{}, rejected.Topics...)
	rejected.Topics[2] = TopicFromAddress(common.HexToAddress("0x03Fb99ea8d3A832729a69C3e8273533b52f30D1A"))

	malformed := types.Log{BlockNumber: 100, TxHash: common.BytesToHash([]byte{0x04})}

	source := &fakeSource{logs: []types.Log{
		malformed,
		rejected,
		wantedLog(101, 0x02),
	}}
	action := &fakeAction{}

	filter := NewEventFilter(FilterConfig{EventSignature: testSignature})
	classifier := NewClassifier(ClassifierConfig{
		Wanted:        testOwner,
		Unwanted:      common.HexToAddress("0x03Fb99ea8d3A832729a69C3e8273533b52f30D1A"),
		VerifyCallers: true,
	}, NewVerdictCache(), &fakeLookup{}, nil)
	monitor := NewMonitor(MonitorConfig{}, filter, classifier, source, action, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	decision, err := monitor.Live(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Candidate.TxHash != common.BytesToHash([]byte{0x02}) {
		t.Fatalf("dispatched wrong candidate: %s", decision.Candidate.TxHash.Hex())
	}
	if got := action.callCount(); got != 1 {
		t.Fatalf("expected exactly one action invocation, got %d", got)
	}
}

func TestReplayExhaustsRange(t *testing.T) {
	source := &fakeSource{logs: []types.Log{
		wantedLog(100, 0x01),
		wantedLog(105, 0x02),
		wantedLog(119, 0x03),
	}}
	action := &fakeAction{}
	monitor := newTestMonitor(source, action)

	summary, err := monitor.Replay(context.Background(), 100, 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := action.callCount(); got != 3 {
		t.Fatalf("expected three action invocations, got %d", got)
	}
	if len(summary.Reports) != 3 {
		t.Fatalf("expected three reports, got %d", len(summary.Reports))
	}
	for _, report := range summary.Reports {
		if report.Trade == nil || !report.Trade.Ok {
			t.Fatalf("expected trade outcome on report: %+v", report)
		}
	}

	// Block order is preserved across batches.
	if summary.Reports[0].BlockNumber != 100 || summary.Reports[2].BlockNumber != 119 {
		t.Fatalf("reports out of order: %+v", summary.Reports)
	}
}

func TestReplaySingleBlockScenario(t *testing.T) {
	lg := types.Log{
		Address:     testToken,
		Topics:      matchingTopics(),
		BlockNumber: 31162358,
		TxHash:      common.BytesToHash([]byte{0x07}),
	}
	source := &fakeSource{logs: []types.Log{lg}}
	action := &fakeAction{}
	monitor := newTestMonitor(source, action)

	summary, err := monitor.Replay(context.Background(), 31162358, 31162358)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(summary.Reports) != 1 {
		t.Fatalf("expected one qualifying candidate, got %d", len(summary.Reports))
	}
	report := summary.Reports[0]
	if report.Token != testToken.Hex() {
		t.Fatalf("token mismatch: %s", report.Token)
	}
	if report.BlockNumber != 31162358 {
		t.Fatalf("block number mismatch: %d", report.BlockNumber)
	}
	if report.Verdict != model.VerdictWanted.String() {
		t.Fatalf("verdict mismatch: %s", report.Verdict)
	}
}

func TestReplayDeduplicatesTransactions(t *testing.T) {
	lg := wantedLog(100, 0x01)
	source := &fakeSource{logs: []types.Log{lg, lg}}
	action := &fakeAction{}
	monitor := newTestMonitor(source, action)

	summary, err := monitor.Replay(context.Background(), 100, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := action.callCount(); got != 1 {
		t.Fatalf("expected one action invocation for duplicate tx, got %d", got)
	}
	if summary.Scanned != 2 {
		t.Fatalf("expected both entries scanned, got %d", summary.Scanned)
	}
}

func TestReplayRejectsInvalidRange(t *testing.T) {
	monitor := newTestMonitor(&fakeSource{}, &fakeAction{})
	if _, err := monitor.Replay(context.Background(), 10, 9); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}
