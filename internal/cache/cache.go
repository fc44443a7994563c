// Package cache provides an in-process TTL memoization cache for derived
// recommendation artifacts: feature vectors, the user-item rating matrix, and
// per-mood base score maps. Entries expire on their own; explicit
// invalidation exists for writes that make an entry wrong before it expires.
package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Cache wraps a TTL store with build coalescing: concurrent misses for the
// same key share one build instead of racing.
type Cache struct {
	store *gocache.Cache
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a point-in-time hit/miss snapshot.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Items  int   `json:"items"`
}

// New creates a cache with the given default TTL. Expired entries are swept
// every cleanupInterval; a non-positive interval disables sweeping and relies
// on lazy expiry.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store: gocache.New(defaultTTL, cleanupInterval),
	}
}

// GetOrBuild returns the cached value for key, building and storing it with
// the given TTL on a miss. A zero ttl uses the cache default. Build errors
// are returned without caching, so the next caller retries.
func (c *Cache) GetOrBuild(key string, ttl time.Duration, build func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller may have finished the build while we queued.
		if v, ok := c.store.Get(key); ok {
			return v, nil
		}
		v, err := build()
		if err != nil {
			return nil, err
		}
		if ttl == 0 {
			ttl = gocache.DefaultExpiration
		}
		c.store.Set(key, v, ttl)
		return v, nil
	})
	return v, err
}

// Get returns the cached value for key without building on a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	v, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value directly. A zero ttl uses the cache default.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(key, value, ttl)
}

// Invalidate removes one key.
func (c *Cache) Invalidate(key string) {
	c.store.Delete(key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.store.Flush()
}

// Stats reports hit/miss counters and the current item count.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Items:  c.store.ItemCount(),
	}
}
