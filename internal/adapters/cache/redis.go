package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis lock/backoff constants.
const (
	defaultLockTTL   = 5 * time.Second
	defaultLockWait  = 5 * time.Second
	lockPollInterval = 50 * time.Millisecond
)

// Redis is a Loader for deployments where several engine processes share
// one cache. The single-flight contract is upheld across processes with a
// SET NX lock keyed by the entry; losing waiters poll the cache for the
// winner's result instead of recomputing.
type Redis[V any] struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	lockTTL  time.Duration
	lockWait time.Duration
}

// RedisOption applies a configuration option to a Redis cache.
type RedisOption[V any] func(*Redis[V])

// WithRedisTTL sets the freshness window.
func WithRedisTTL[V any](ttl time.Duration) RedisOption[V] {
	return func(c *Redis[V]) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLockTimeout bounds how long waiters block on another process's
// in-flight recomputation before giving up with ErrLockTimeout.
func WithLockTimeout[V any](wait time.Duration) RedisOption[V] {
	return func(c *Redis[V]) {
		if wait > 0 {
			c.lockWait = wait
		}
	}
}

// NewRedis creates a shared cache. The prefix namespaces entries by kind,
// e.g. "profile" or "baseline".
func NewRedis[V any](client *redis.Client, prefix string, opts ...RedisOption[V]) *Redis[V] {
	c := &Redis[V]{
		client:   client,
		prefix:   prefix,
		ttl:      defaultTTL,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Redis[V]) key(key string) string  { return fmt.Sprintf("%s:%s", c.prefix, key) }
func (c *Redis[V]) lock(key string) string { return fmt.Sprintf("lock:%s:%s", c.prefix, key) }

// Get reads the cached value, recomputing through a cross-process lock on
// a miss. The value is written only once fully computed; a failed compute
// leaves whatever the cache held untouched.
func (c *Redis[V]) Get(ctx context.Context, key string, force bool, compute func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	if !force {
		if v, ok, err := c.read(ctx, key); err != nil {
			return zero, err
		} else if ok {
			return v, nil
		}
	}

	acquired, err := c.client.SetNX(ctx, c.lock(key), "1", c.lockTTL).Result()
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	if !acquired {
		return c.await(ctx, key)
	}
	defer c.client.Del(ctx, c.lock(key))

	val, err := compute(ctx)
	if err != nil {
		return zero, err
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return val, nil
}

// Invalidate drops a key so the next Get recomputes.
func (c *Redis[V]) Invalidate(key string) {
	c.client.Del(context.Background(), c.key(key))
}

// await polls for the lock winner's result.
func (c *Redis[V]) await(ctx context.Context, key string) (V, error) {
	var zero V
	deadline := time.Now().Add(c.lockWait)
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
			if v, ok, err := c.read(ctx, key); err != nil {
				return zero, err
			} else if ok {
				return v, nil
			}
			if time.Now().After(deadline) {
				return zero, fmt.Errorf("%w: key %s", ErrLockTimeout, key)
			}
		}
	}
}

func (c *Redis[V]) read(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return v, true, nil
}
