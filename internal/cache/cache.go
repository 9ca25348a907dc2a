// Package cache implements a keyed, time-bounded cache that de-duplicates
// concurrent loads of the same key.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/newsroom-edge/internal/metrics"
	"github.com/JakeFAU/newsroom-edge/internal/site"
)

// Loader fetches the value for a key on a miss.
type Loader[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value    V
	loadedAt time.Time
}

// Cache holds values by key for a freshness window. Concurrent Gets for a
// key that is missing or stale share a single Loader call. Errors are never
// cached, and a failed reload drops the stale entry.
type Cache[V any] struct {
	name  string
	ttl   time.Duration
	clock site.Clock

	mu      sync.RWMutex
	entries map[string]entry[V]
	group   singleflight.Group
}

// New creates a cache. name labels the metrics; a non-positive ttl disables
// freshness so every Get outside an in-flight load reloads.
func New[V any](name string, ttl time.Duration, clock site.Clock) *Cache[V] {
	return &Cache[V]{
		name:    name,
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the fresh value for key or loads it. The load runs detached
// from the caller's cancellation so one canceled waiter does not fail the
// others sharing it.
func (c *Cache[V]) Get(ctx context.Context, key string, load Loader[V]) (V, error) {
	if v, ok := c.fresh(key); ok {
		metrics.ObserveCacheLookup(c.name, metrics.CacheHit)
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.fresh(key); ok {
			return v, nil
		}
		v, err := load(context.WithoutCancel(ctx))
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			delete(c.entries, key)
			return v, err
		}
		now := c.clock.Now()
		c.evictExpiredLocked(now)
		c.entries[key] = entry[V]{value: v, loadedAt: now}
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("cache %s get %q: %w", c.name, key, ctx.Err())
	case res := <-ch:
		result := metrics.CacheMiss
		if res.Shared {
			result = metrics.CacheShared
		}
		metrics.ObserveCacheLookup(c.name, result)
		if res.Err != nil {
			return zero, fmt.Errorf("cache %s load %q: %w", c.name, key, res.Err)
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// Peek returns the cached value for key if it is still fresh.
func (c *Cache[V]) Peek(key string) (V, bool) {
	return c.fresh(key)
}

// Len reports the number of stored entries. Expired entries are dropped on
// the next successful load, so some may still be counted.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) fresh(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.ttl <= 0 || c.clock.Now().Sub(e.loadedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// evictExpiredLocked drops every entry past the ttl. Callers hold mu.
func (c *Cache[V]) evictExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if c.ttl <= 0 || now.Sub(e.loadedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
}
