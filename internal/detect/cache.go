package detect

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"tokenSniper/internal/model"
)

// VerdictCache stores resolved verdicts by caller address so expensive
// transaction lookups run at most once per caller. Entries are write-once;
// the first committed resolution wins. Indeterminate is never stored.
// Unbounded for the lifetime of the process.
type VerdictCache struct {
	mu       sync.RWMutex
	verdicts map[common.Address]model.Verdict
	flight   singleflight.Group
}

// NewVerdictCache builds an empty cache.
func NewVerdictCache() *VerdictCache {
	return &VerdictCache{verdicts: make(map[common.Address]model.Verdict)}
}

// Get returns the committed verdict for the caller, if any.
func (c *VerdictCache) Get(caller common.Address) (model.Verdict, bool) {
	c.mu.RLock()
	verdict, ok := c.verdicts[caller]
	c.mu.RUnlock()
	return verdict, ok
}

// Len returns the number of committed entries.
func (c *VerdictCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.verdicts)
}

// Resolve returns the cached verdict or runs producer to obtain one,
// guaranteeing a single in-flight producer per caller: concurrent callers
// for the same address share one resolution. A producer error leaves the
// key uncached so a later candidate can retry.
func (c *VerdictCache) Resolve(ctx context.Context, caller common.Address, producer func(context.Context) (model.Verdict, error)) (model.Verdict, error) {
	if verdict, ok := c.Get(caller); ok {
		return verdict, nil
	}

	result, err, _ := c.flight.Do(caller.Hex(), func() (interface{}, error) {
		if verdict, ok := c.Get(caller); ok {
			return verdict, nil
		}

		verdict, err := producer(ctx)
		if err != nil {
			return model.VerdictIndeterminate, err
		}
		if verdict == model.VerdictIndeterminate {
			return model.VerdictIndeterminate, fmt.Errorf("producer returned indeterminate verdict")
		}

		c.mu.Lock()
		if committed, ok := c.verdicts[caller]; ok {
			verdict = committed
		} else {
			c.verdicts[caller] = verdict
		}
		c.mu.Unlock()

		return verdict, nil
	})
	if err != nil {
		return model.VerdictIndeterminate, err
	}

	return result.(model.Verdict), nil
}
