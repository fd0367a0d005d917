// Package ttlcache is a small read-through cache where each key is refreshed
// by a caller-supplied fetch once its entry is stale. Concurrent refreshes of
// the same key share a single fetch.
package ttlcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is a cached value and the time it was fetched.
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
}

// FetchFunc loads the current value for a key.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

type Cache[K comparable, V any] struct {
	ttl   time.Duration
	fetch FetchFunc[K, V]
	now   func() time.Time

	mu      sync.RWMutex
	entries map[K]Entry[V]
	group   singleflight.Group
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New[K comparable, V any](ttl time.Duration, fetch FetchFunc[K, V], opts ...Option) *Cache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		ttl:     ttl,
		fetch:   fetch,
		now:     o.now,
		entries: make(map[K]Entry[V]),
	}
}

// Fresh reports whether an entry fetched at fetchedAt is still within ttl of now.
func Fresh(fetchedAt, now time.Time, ttl time.Duration) bool {
	if fetchedAt.IsZero() {
		return false
	}
	return now.Sub(fetchedAt) < ttl
}

// Get returns the cached value for key, fetching it when absent or stale.
// Fetch errors are returned to every waiting caller and are not cached.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}
	return c.refresh(ctx, key)
}

// Peek returns the cached value only if it is fresh. It never fetches.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && Fresh(entry.FetchedAt, c.now(), c.ttl) {
		return entry.Value, true
	}
	var zero V
	return zero, false
}

// Invalidate drops the entry for key.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache[K, V]) refresh(ctx context.Context, key K) (V, error) {
	var zero V

	// The shared fetch outlives any single caller, so it must not inherit
	// one caller's cancellation.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprint(key), func() (any, error) {
		// Another flight may have filled the entry while this one queued.
		if v, ok := c.Peek(key); ok {
			return v, nil
		}
		v, err := c.fetch(fetchCtx, key)
		if err != nil {
			return zero, err
		}
		c.mu.Lock()
		c.entries[key] = Entry[V]{Value: v, FetchedAt: c.now()}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}
