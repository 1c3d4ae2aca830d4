package holidays

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// PERSISTENT CACHE - Multi-day buntdb cache in front of a remote provider
// =============================================================================

const keyPrefix = "holiday:"

// PersistentCache stores facts in buntdb with a TTL so that a restart does
// not re-query the remote provider for dates it already knows. Cache read and
// write failures degrade to calling next.
type PersistentCache struct {
	db     *buntdb.DB
	next   payroll.HolidayLookup
	ttl    time.Duration
	logger logger.Logger
}

// OpenPersistentCache opens (or creates) the buntdb file at path. ":memory:"
// keeps the cache in RAM.
func OpenPersistentCache(path string, ttl time.Duration, next payroll.HolidayLookup) (*PersistentCache, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open holiday cache %s: %w", path, err)
	}
	return &PersistentCache{db: db, next: next, ttl: ttl, logger: logger.Named("holiday-cache")}, nil
}

func (c *PersistentCache) Close() error {
	return c.db.Close()
}

func (c *PersistentCache) Lookup(ctx context.Context, date time.Time) (payroll.HolidayFact, error) {
	key := keyPrefix + payroll.DateKey(date)

	fact, ok, err := c.get(key)
	if err != nil {
		c.logger.Warn(ctx, "holiday cache read failed", logger.String("key", key), logger.Error(err))
	}
	if ok {
		return fact, nil
	}

	fact, err = c.next.Lookup(ctx, date)
	if err != nil {
		return payroll.HolidayFact{}, err
	}
	if err := c.put(key, fact); err != nil {
		c.logger.Warn(ctx, "holiday cache write failed", logger.String("key", key), logger.Error(err))
	}
	return fact, nil
}

func (c *PersistentCache) get(key string) (payroll.HolidayFact, bool, error) {
	var fact payroll.HolidayFact
	found := false
	err := c.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(v), &fact); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return payroll.HolidayFact{}, false, err
	}
	return fact, found, nil
}

func (c *PersistentCache) put(key string, fact payroll.HolidayFact) error {
	bs, err := json.Marshal(fact)
	if err != nil {
		return err
	}
	var opts *buntdb.SetOptions
	if c.ttl > 0 {
		opts = &buntdb.SetOptions{Expires: true, TTL: c.ttl}
	}
	return c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(bs), opts)
		return err
	})
}

// Invalidate drops the cached fact for date.
func (c *PersistentCache) Invalidate(date time.Time) error {
	err := c.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(keyPrefix + payroll.DateKey(date))
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil
	}
	return err
}
