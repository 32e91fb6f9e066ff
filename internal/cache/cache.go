// SPDX-License-Identifier: MIT

// Package cache stores rendered page documents between builds. Entries
// are keyed by (page checksum, renderer version), so unchanged pages skip
// the renderer entirely on rebuild.
package cache

import (
	"sync"
	"time"
)

// Cache is a thread-safe byte store with per-entry TTL.
type Cache interface {
	// Get retrieves a value. The second result is false if the key is
	// absent or expired.
	Get(key string) ([]byte, bool)
	// Set stores a value with the specified TTL. A non-positive TTL
	// stores the entry without expiry.
	Set(key string, value []byte, ttl time.Duration)
	// Delete removes a value.
	Delete(key string)
	// Clear removes all values.
	Clear()
	// Stats returns cache statistics.
	Stats() Stats
	// Close releases backend resources.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int   `json:"current_size"`
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) expired() bool {
	return !e.expiration.IsZero() && time.Now().After(e.expiration)
}

// memoryCache is the in-process implementation.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	janitor *janitor
}

// NewMemoryCache creates an in-memory cache. When cleanupInterval is
// positive a background janitor evicts expired entries.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{entries: make(map[string]*entry)}
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.expired() {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.value, true
}

func (c *memoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expiration = time.Now().Add(ttl)
	}
	c.entries[key] = e
	c.stats.Sets++
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *memoryCache) Close() error {
	if c.janitor != nil {
		close(c.janitor.stop)
	}
	return nil
}

func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.expired() {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// noOpCache disables caching entirely.
type noOpCache struct{}

// NewNoOpCache creates a cache that never stores anything.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (noOpCache) Get(string) ([]byte, bool)         { return nil, false }
func (noOpCache) Set(string, []byte, time.Duration) {}
func (noOpCache) Delete(string)                     {}
func (noOpCache) Clear()                            {}
func (noOpCache) Stats() Stats                      { return Stats{} }
func (noOpCache) Close() error                      { return nil }
