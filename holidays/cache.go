package holidays

import (
	"context"
	"sync"
	"time"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// BATCH CACHE - Per-run memoization keyed by calendar date
// =============================================================================

// BatchCache memoizes facts by calendar date for the duration of one batch.
// Facts do not depend on the employee, so the date is the whole key.
// Concurrent misses on the same date may both call next; the last write wins
// since facts are deterministic for a date.
type BatchCache struct {
	next payroll.HolidayLookup

	mu    sync.RWMutex
	facts map[string]payroll.HolidayFact
}

func NewBatchCache(next payroll.HolidayLookup) *BatchCache {
	return &BatchCache{next: next, facts: make(map[string]payroll.HolidayFact)}
}

func (c *BatchCache) Lookup(ctx context.Context, date time.Time) (payroll.HolidayFact, error) {
	key := payroll.DateKey(date)

	c.mu.RLock()
	fact, ok := c.facts[key]
	c.mu.RUnlock()
	if ok {
		return fact, nil
	}

	fact, err := c.next.Lookup(ctx, date)
	if err != nil {
		return payroll.HolidayFact{}, err
	}

	c.mu.Lock()
	c.facts[key] = fact
	c.mu.Unlock()
	return fact, nil
}

// Len is the number of cached dates.
func (c *BatchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.facts)
}
