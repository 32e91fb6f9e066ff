// SPDX-License-Identifier: MIT

package cache

import (
	"testing"
	"time"
)

func TestMemoryCacheBasics(t *testing.T) {
	c := NewMemoryCache(0)
	defer func() { _ = c.Close() }()

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) = ok, want miss")
	}

	c.Set("k", []byte("v"), time.Minute)
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Errorf("Get(k) = %q, %v; want v, true", got, ok)
	}

	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Get after Delete = ok, want miss")
	}

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)
	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Error("Get after Clear = ok, want miss")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(0)
	defer func() { _ = c.Close() }()

	c.Set("short", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expired entry still served")
	}
}

func TestMemoryCacheNoTTL(t *testing.T) {
	c := NewMemoryCache(0)
	defer func() { _ = c.Close() }()

	c.Set("forever", []byte("x"), 0)
	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get("forever"); !ok {
		t.Error("entry without TTL evicted")
	}
}

func TestMemoryCacheStats(t *testing.T) {
	c := NewMemoryCache(0)
	defer func() { _ = c.Close() }()

	c.Set("k", []byte("v"), time.Minute)
	c.Get("k")
	c.Get("nope")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 || stats.CurrentSize != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMemoryCacheJanitor(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond).(*memoryCache)
	defer func() { _ = c.Close() }()

	c.Set("short", []byte("x"), 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	c.mu.RLock()
	_, present := c.entries["short"]
	c.mu.RUnlock()
	if present {
		t.Error("janitor did not evict expired entry")
	}
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	c.Set("k", []byte("v"), time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("noop cache returned a value")
	}
}

func TestBadgerCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logger := testLogger()

	c, err := NewBadgerCache(dir, logger)
	if err != nil {
		t.Fatalf("NewBadgerCache() error = %v", err)
	}

	c.Set("page:abc", []byte(`{"html":"<p>x</p>"}`), 0)
	got, ok := c.Get("page:abc")
	if !ok || string(got) != `{"html":"<p>x</p>"}` {
		t.Errorf("Get = %q, %v", got, ok)
	}

	c.Delete("page:abc")
	if _, ok := c.Get("page:abc"); ok {
		t.Error("Get after Delete = ok, want miss")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopen: values written before Close must survive.
	c2, err := NewBadgerCache(dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c2.Close() }()

	c2.Set("persist", []byte("v"), 0)
	if got, ok := c2.Get("persist"); !ok || string(got) != "v" {
		t.Errorf("Get(persist) = %q, %v", got, ok)
	}
}
