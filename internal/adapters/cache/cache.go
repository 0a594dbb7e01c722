// Package cache provides the TTL'd, single-flighted cache used for
// derived calibration artifacts (baselines, coach profiles).
//
// Contract: a stale or absent key triggers exactly one computation per
// key; concurrent callers collapse onto that computation and all observe
// its result. A failed computation never evicts a previously good entry.
// Values are swapped in atomically only once fully computed.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/calibrate/pkg/metrics"
)

// Clock supplies the current time. Tests inject a deterministic one.
type Clock func() time.Time

// Default cache configuration constants.
const (
	defaultTTL = 5 * time.Minute
)

// Entry wraps a cached value with its computation timestamp.
type Entry[V any] struct {
	Value      V
	ComputedAt time.Time
}

// Loader is the read-through contract shared by the in-process and Redis
// caches. Force bypasses the freshness window but still single-flights.
type Loader[V any] interface {
	Get(ctx context.Context, key string, force bool, compute func(ctx context.Context) (V, error)) (V, error)
	Invalidate(key string)
}

// Memory is an in-process Loader implementation.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
	flight  singleflight.Group
	ttl     time.Duration
	clock   Clock
}

// Option applies a configuration option to a Memory cache.
type Option[V any] func(*Memory[V])

// WithTTL sets the freshness window.
func WithTTL[V any](ttl time.Duration) Option[V] {
	return func(c *Memory[V]) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock[V any](clock Clock) Option[V] {
	return func(c *Memory[V]) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewMemory creates an in-process cache with configuration options.
func NewMemory[V any](opts ...Option[V]) *Memory[V] {
	c := &Memory[V]{
		entries: make(map[string]Entry[V]),
		ttl:     defaultTTL,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key when fresh, otherwise computes it.
// Concurrent misses for the same key share one computation. On compute
// failure the previous entry (if any) stays cached and is returned
// alongside the error so callers can fall back to it.
func (c *Memory[V]) Get(ctx context.Context, key string, force bool, compute func(ctx context.Context) (V, error)) (V, error) {
	if !force {
		if e, ok := c.peek(key); ok && c.fresh(e) {
			return e.Value, nil
		}
	}

	v, err, shared := c.flight.Do(key, func() (any, error) {
		// Re-check inside the flight: a waiter queued behind a refresh
		// must observe that refresh, not start another.
		if !force {
			if e, ok := c.peek(key); ok && c.fresh(e) {
				return e.Value, nil
			}
		}
		val, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = Entry[V]{Value: val, ComputedAt: c.clock()}
		c.mu.Unlock()
		return val, nil
	})
	if shared {
		metrics.RecordSingleflightCollapse()
	}
	if err != nil {
		// Keep and surface the stale entry; never evict on failure.
		if e, ok := c.peek(key); ok {
			return e.Value, err
		}
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Peek returns the raw entry without recomputation or freshness checks.
func (c *Memory[V]) Peek(key string) (Entry[V], bool) {
	return c.peek(key)
}

// Invalidate drops a key so the next Get recomputes.
func (c *Memory[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Memory[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Memory[V]) peek(key string) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Memory[V]) fresh(e Entry[V]) bool {
	return c.clock().Sub(e.ComputedAt) < c.ttl
}
