package detect

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokenSniper/internal/model"
)

// CallerLookup resolves the true sender of a transaction.
type CallerLookup interface {
	TransactionCaller(ctx context.Context, txHash common.Hash) (common.Address, error)
}

// ClassifierConfig holds the trust rules.
type ClassifierConfig struct {
	// Wanted is the caller whose deployments trigger a trade.
	Wanted common.Address
	// Unwanted is a known caller whose deployments are always rejected.
	Unwanted common.Address
	// VerifyCallers enables the transaction-sender lookup for callers that
	// match neither address. When disabled, unknown callers are rejected.
	VerifyCallers bool
}

// Classifier assigns a verdict to each candidate. Direct address matches
// resolve without touching the cache; everything else goes through the
// verdict cache and, when enabled, a single-flight transaction lookup.
type Classifier struct {
	cfg    ClassifierConfig
	cache  *VerdictCache
	lookup CallerLookup
	logger *zap.Logger
}

// NewClassifier builds a Classifier with its dependencies.
func NewClassifier(cfg ClassifierConfig, cache *VerdictCache, lookup CallerLookup, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewVerdictCache()
	}
	return &Classifier{
		cfg:    cfg,
		cache:  cache,
		lookup: lookup,
		logger: logger,
	}
}

// Classify applies the trust rules to a candidate. It never returns
// Indeterminate: ambiguity that cannot be resolved fails closed.
func (c *Classifier) Classify(ctx context.Context, candidate model.Candidate) model.Verdict {
	if verdict, ok := c.matchDirect(candidate.Caller); ok {
		return verdict
	}

	if verdict, ok := c.cache.Get(candidate.Caller); ok {
		c.logger.Debug("verdict from cache",
			zap.String("caller", candidate.Caller.Hex()),
			zap.String("verdict", verdict.String()),
		)
		return verdict
	}

	if !c.cfg.VerifyCallers {
		c.logger.Info("verification disabled, rejecting unverified caller",
			zap.String("caller", candidate.Caller.Hex()),
			zap.String("token", candidate.Token.Hex()),
		)
		return model.VerdictUnwanted
	}

	verdict, err := c.cache.Resolve(ctx, candidate.Caller, func(ctx context.Context) (model.Verdict, error) {
		return c.verifyCaller(ctx, candidate)
	})
	if err != nil {
		c.logger.Warn("caller verification failed, rejecting candidate",
			zap.Error(err),
			zap.String("caller", candidate.Caller.Hex()),
			zap.String("tx_hash", candidate.TxHash.Hex()),
		)
		return model.VerdictUnwanted
	}

	return verdict
}

func (c *Classifier) matchDirect(caller common.Address) (model.Verdict, bool) {
	switch caller {
	case c.cfg.Wanted:
		return model.VerdictWanted, true
	case c.cfg.Unwanted:
		return model.VerdictUnwanted, true
	}
	return model.VerdictIndeterminate, false
}

// verifyCaller resolves the transaction's true sender and maps it through
// the direct rules. A sender matching neither address resolves unwanted.
func (c *Classifier) verifyCaller(ctx context.Context, candidate model.Candidate) (model.Verdict, error) {
	if c.lookup == nil {
		return model.VerdictIndeterminate, fmt.Errorf("caller lookup is nil")
	}

	sender, err := c.lookup.TransactionCaller(ctx, candidate.TxHash)
	if err != nil {
		return model.VerdictIndeterminate, fmt.Errorf("transaction caller: %w", err)
	}

	verdict, ok := c.matchDirect(sender)
	if !ok {
		verdict = model.VerdictUnwanted
	}

	c.logger.Info("caller verified",
		zap.String("caller", candidate.Caller.Hex()),
		zap.String("sender", sender.Hex()),
		zap.String("verdict", verdict.String()),
		zap.String("tx_hash", candidate.TxHash.Hex()),
	)

	return verdict, nil
}
