// Package cache holds a single-value time-to-live cache.
package cache

import (
	"sync"
	"time"
)

// TTL caches one value of type T. A value older than the TTL is no longer
// fresh but stays available through Stale until it is replaced or invalidated.
type TTL[T any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	nowFunc  func() time.Time
	value    T
	storedAt time.Time
	ok       bool
}

// New returns an empty cache. A nil now uses time.Now.
func New[T any](ttl time.Duration, now func() time.Time) *TTL[T] {
	if now == nil {
		now = time.Now
	}
	return &TTL[T]{ttl: ttl, nowFunc: now}
}

// Get returns the cached value if it was stored less than the TTL ago.
func (c *TTL[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok || c.nowFunc().Sub(c.storedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Stale returns the cached value regardless of age.
func (c *TTL[T]) Stale() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.ok
}

// Set replaces the cached value.
func (c *TTL[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.storedAt = c.nowFunc()
	c.ok = true
}

// Invalidate drops the cached value.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.ok = false
}
