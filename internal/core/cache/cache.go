// Package cache provides a generic in-process key/value store with per-entry
// TTLs, hit/miss accounting and a background expiry sweep.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// entryOverhead is the rough per-entry bookkeeping cost used for the
// size estimate, on top of the key length.
const entryOverhead = 96

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Stats is a snapshot of cache counters. Hits and Misses are cumulative and
// reset only on process restart.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Keys      int   `json:"keys"`
	SizeBytes int64 `json:"size_bytes"` // rough estimate
}

// HitRatio returns hits / (hits + misses), or 0 when no lookups happened.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a TTL key/value store safe for concurrent use.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]

	hits   atomic.Int64
	misses atomic.Int64

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	sweepInterval time.Duration
}

// WithSweepInterval sets the background expiry sweep period.
// A non-positive interval disables the sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// New creates a cache and starts its background sweeper.
func New[V any](opts ...Option) *Cache[V] {
	o := options{sweepInterval: time.Hour}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		entries:       make(map[string]entry[V]),
		sweepInterval: o.sweepInterval,
		stop:          make(chan struct{}),
	}

	if c.sweepInterval > 0 {
		go c.sweepLoop()
	}

	return c
}

// Get returns the value for key. A logically expired entry is treated as
// absent and reclaimed opportunistically.
func (c *Cache[V]) Get(key string) (V, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !e.expired(now) {
		c.hits.Add(1)
		return e.value, true
	}

	if ok {
		// Expired but not yet swept
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expired(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}

	c.misses.Add(1)
	var zero V
	return zero, false
}

// Set stores value under key for ttl from now. An existing entry for the
// same key is replaced.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key and reports whether an entry was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// GetOrCompute returns the cached value for key, or invokes produce, stores
// the result with ttl and returns it. A produce failure propagates to the
// caller and nothing is cached.
//
// Concurrent misses on the same key are not serialized: racing callers may
// each invoke produce. Producers are idempotent or deduplicated upstream
// (the store's unique constraint is the durable backstop), so the last write
// simply wins.
func (c *Cache[V]) GetOrCompute(
	ctx context.Context,
	key string,
	ttl time.Duration,
	produce func(context.Context) (V, error),
) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := produce(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, v, ttl)
	return v, nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	keys := len(c.entries)
	var size int64
	for k := range c.entries {
		size += int64(len(k) + entryOverhead)
	}
	c.mu.RUnlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Keys:      keys,
		SizeBytes: size,
	}
}

// Clear removes all entries. Counters are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Close stops the background sweeper.
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[V]) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

func (c *Cache[V]) sweep(now time.Time) {
	c.mu.Lock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
