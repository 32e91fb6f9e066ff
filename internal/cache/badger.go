// SPDX-License-Identifier: MIT

package cache

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerCache is a disk-backed cache. Rendered pages survive restarts, so
// a daemon coming back up only re-renders pages whose checksums changed.
type BadgerCache struct {
	db     *badger.DB
	logger zerolog.Logger
	stats  struct {
		hits      atomic.Int64
		misses    atomic.Int64
		sets      atomic.Int64
		evictions atomic.Int64
	}
}

// NewBadgerCache opens (or creates) a Badger store at path.
func NewBadgerCache(path string, logger zerolog.Logger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerCache{db: db, logger: logger}, nil
}

// Get retrieves a value from the store.
func (c *BadgerCache) Get(key string) ([]byte, bool) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("badger get failed")
		}
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return out, true
}

// Set stores a value. Badger enforces the TTL natively.
func (c *BadgerCache) Set(key string, value []byte, ttl time.Duration) {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger set failed")
		return
	}
	c.stats.sets.Add(1)
}

// Delete removes a value.
func (c *BadgerCache) Delete(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger delete failed")
	}
}

// Clear drops all entries.
func (c *BadgerCache) Clear() {
	if err := c.db.DropAll(); err != nil {
		c.logger.Warn().Err(err).Msg("badger drop failed")
		return
	}
	c.stats.evictions.Add(1)
}

// Stats returns cache statistics. CurrentSize is an estimate from the
// LSM key count and may include not-yet-compacted tombstones.
func (c *BadgerCache) Stats() Stats {
	var size int
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			size++
		}
		return nil
	})
	return Stats{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		Evictions:   c.stats.evictions.Load(),
		CurrentSize: size,
	}
}

// Close releases the underlying store.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
