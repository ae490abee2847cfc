package detect

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"tokenSniper/internal/model"
)

// LogSource delivers chain logs, live or historical.
type LogSource interface {
	SubscribeLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, query ethereum.FilterQuery) ([]types.Log, error)
}

// Action hands a qualified token to trade execution. Act must not block:
// it returns a channel that eventually carries the trade outcome.
type Action interface {
	Act(ctx context.Context, token common.Address) <-chan model.TradeResult
}

// MonitorConfig holds runtime settings for the monitor.
type MonitorConfig struct {
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Monitor drives the detection loop. It owns loop termination and the
// at-most-once dispatch decision in live mode; classification itself is
// delegated to the EventFilter and Classifier, which behave identically
// in both modes.
type Monitor struct {
	cfg        MonitorConfig
	filter     *EventFilter
	classifier *Classifier
	source     LogSource
	action     Action
	logger     *zap.Logger
	seen       map[common.Hash]struct{}
}

// NewMonitor builds a Monitor with its dependencies.
func NewMonitor(cfg MonitorConfig, filter *EventFilter, classifier *Classifier, source LogSource, action Action, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2000
	}
	return &Monitor{
		cfg:        cfg,
		filter:     filter,
		classifier: classifier,
		source:     source,
		action:     action,
		logger:     logger,
		seen:       make(map[common.Hash]struct{}),
	}
}

type classified struct {
	candidate model.Candidate
	verdict   model.Verdict
}

// Live subscribes to matching logs and consumes them until the first
// Wanted verdict. The action is then invoked exactly once, without being
// awaited, and the loop terminates: one irreversible trade per run.
// Classification runs off the intake loop so a slow verification lookup
// never delays later entries; lookups still in flight at termination are
// abandoned.
func (m *Monitor) Live(ctx context.Context) (*model.DispatchDecision, error) {
	if m.source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if m.action == nil {
		return nil, fmt.Errorf("action is nil")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logs := make(chan types.Log, 128)
	sub, err := m.source.SubscribeLogs(loopCtx, m.filter.Query(), logs)
	if err != nil {
		return nil, fmt.Errorf("subscribe logs: %w", err)
	}
	defer sub.Unsubscribe()

	m.logger.Info("live monitoring started")

	verdicts := make(chan classified, 16)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-sub.Err():
			if err != nil {
				return nil, fmt.Errorf("subscription: %w", err)
			}
			return nil, fmt.Errorf("subscription closed")
		case lg := <-logs:
			candidate, ok := m.filter.Decode(lg)
			if !ok {
				continue
			}
			if m.isDuplicate(candidate.TxHash) {
				continue
			}
			m.logger.Info("candidate detected",
				zap.String("token", candidate.Token.Hex()),
				zap.String("caller", candidate.Caller.Hex()),
				zap.Uint64("block_number", candidate.BlockNumber),
				zap.String("tx_hash", candidate.TxHash.Hex()),
			)
			go func(candidate model.Candidate) {
				verdict := m.classifier.Classify(loopCtx, candidate)
				select {
				case verdicts <- classified{candidate: candidate, verdict: verdict}:
				case <-loopCtx.Done():
				}
			}(candidate)
		case result := <-verdicts:
			if !m.logVerdict(result) {
				continue
			}

			// Stop consuming before dispatching so no second entry can
			// qualify. The action runs on the parent context: loop
			// shutdown must not cancel the trade.
			sub.Unsubscribe()
			cancel()

			outcome := m.action.Act(ctx, result.candidate.Token)
			m.logger.Info("action dispatched",
				zap.String("token", result.candidate.Token.Hex()),
				zap.String("tx_hash", result.candidate.TxHash.Hex()),
			)
			return &model.DispatchDecision{
				Dispatched: true,
				Candidate:  result.candidate,
				Outcome:    outcome,
			}, nil
		}
	}
}

// Replay re-evaluates the inclusive block range with the same per-entry
// logic as Live. Every Wanted candidate triggers its own action; the range
// is always exhausted. Trade outcomes are collected at the end so dispatch
// stays non-blocking during the scan.
func (m *Monitor) Replay(ctx context.Context, fromBlock, toBlock uint64) (*model.ReplaySummary, error) {
	if m.source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if m.action == nil {
		return nil, fmt.Errorf("action is nil")
	}

	ranges, err := SplitRange(fromBlock, toBlock, m.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	m.logger.Info("replay started",
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", toBlock),
		zap.Int("batches", len(ranges)),
	)

	summary := &model.ReplaySummary{FromBlock: fromBlock, ToBlock: toBlock}

	type pendingTrade struct {
		report  int
		outcome <-chan model.TradeResult
	}
	var pending []pendingTrade

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		logs, err := m.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return nil, fmt.Errorf("filter logs: %w", err)
		}

		// eth_getLogs responses are ordered, but replay must hold
		// non-decreasing block order even against a sloppy source.
		sort.SliceStable(logs, func(i, j int) bool {
			if logs[i].BlockNumber != logs[j].BlockNumber {
				return logs[i].BlockNumber < logs[j].BlockNumber
			}
			return logs[i].Index < logs[j].Index
		})

		for _, lg := range logs {
			summary.Scanned++

			candidate, ok := m.filter.Decode(lg)
			if !ok {
				continue
			}
			if m.isDuplicate(candidate.TxHash) {
				continue
			}

			verdict := m.classifier.Classify(ctx, candidate)
			if !m.logVerdict(classified{candidate: candidate, verdict: verdict}) {
				continue
			}

			outcome := m.action.Act(ctx, candidate.Token)
			summary.Reports = append(summary.Reports, model.CandidateReport{
				Token:       candidate.Token.Hex(),
				Caller:      candidate.Caller.Hex(),
				BlockNumber: candidate.BlockNumber,
				TxHash:      candidate.TxHash.Hex(),
				Verdict:     verdict.String(),
			})
			pending = append(pending, pendingTrade{report: len(summary.Reports) - 1, outcome: outcome})
		}
	}

	for _, trade := range pending {
		select {
		case result := <-trade.outcome:
			summary.Reports[trade.report].Trade = &result
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.logger.Info("replay complete",
		zap.Int("scanned", summary.Scanned),
		zap.Int("qualifying", len(summary.Reports)),
	)

	return summary, nil
}

// logVerdict reports whether the verdict authorizes a dispatch. The wanted
// path always logs: action-triggering decisions must be auditable.
func (m *Monitor) logVerdict(result classified) bool {
	fields := []zap.Field{
		zap.String("token", result.candidate.Token.Hex()),
		zap.String("caller", result.candidate.Caller.Hex()),
		zap.Uint64("block_number", result.candidate.BlockNumber),
		zap.String("tx_hash", result.candidate.TxHash.Hex()),
	}
	switch result.verdict {
	case model.VerdictWanted:
		m.logger.Info("wanted token detected", fields...)
		return true
	case model.VerdictUnwanted:
		m.logger.Info("candidate rejected", fields...)
	case model.VerdictIndeterminate:
		m.logger.Warn("candidate left unresolved", fields...)
	}
	return false
}

func (m *Monitor) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, m.cfg.MaxRetries, m.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = m.source.FilterLogs(ctx, fromBlock, toBlock, m.filter.Query())
		if err != nil {
			m.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (m *Monitor) isDuplicate(txHash common.Hash) bool {
	if _, ok := m.seen[txHash]; ok {
		return true
	}
	m.seen[txHash] = struct{}{}
	return false
}
