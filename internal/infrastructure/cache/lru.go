// Package cache provides a bounded, concurrency-safe LRU cache with optional expiry.
package cache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// LRU is a bounded cache that evicts the least recently used entry when full.
// A zero TTL keeps entries until they are evicted.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewLRU creates a cache holding at most maxEntries values. maxEntries must be positive.
func NewLRU[K comparable, V any](maxEntries int, ttl time.Duration) *LRU[K, V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &LRU[K, V]{
		cache: lru.New(maxEntries),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the value for key. Expired entries are removed and reported missing.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	raw, ok := c.cache.Get(key)
	if !ok {
		return zero, false
	}

	e := raw.(entry[V])
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.cache.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Add stores value under key, marking it most recently used.
func (c *LRU[K, V]) Add(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.cache.Add(key, e)
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

// Len returns the number of entries, including expired ones not yet collected.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Clear removes every entry.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
}
