// Package memo provides generic LRU memoization for the clustering
// engine's repeated tokenization, structural-match, and score lookups.
// Each clustering invocation owns its cache instances; nothing is shared
// across runs.
package memo

import (
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize bounds a cache when the config does not override it.
const DefaultSize = 2048

// Cache memoizes a computation behind a fixed-capacity LRU. Get either
// returns the cached value (refreshing its recency) or computes, inserts,
// and returns it, evicting the least-recently-used entry when full.
type Cache[K comparable, V any] struct {
	inner *lru.Cache[K, V]
}

// New creates a Cache holding at most size entries. size <= 0 falls back
// to DefaultSize.
func New[K comparable, V any](size int) *Cache[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	// lru.New only errors on non-positive size, which is guarded above.
	inner, _ := lru.New[K, V](size)
	return &Cache[K, V]{inner: inner}
}

// Get returns the memoized value for key, invoking compute on a miss.
func (c *Cache[K, V]) Get(key K, compute func() V) V {
	if v, ok := c.inner.Get(key); ok {
		return v
	}
	v := compute()
	c.inner.Add(key, v)
	return v
}

// Contains reports whether key is cached, without refreshing recency.
func (c *Cache[K, V]) Contains(key K) bool {
	return c.inner.Contains(key)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.inner.Len()
}

// PairKey builds an order-independent cache key for a pair of signatures
// so that (a, b) and (b, a) hit the same entry.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// ContentHash hashes text so that semantically identical inputs share a
// score-cache entry regardless of identity.
func ContentHash(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}
