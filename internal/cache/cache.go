// Package cache provides a short-lived in-memory cache for aggregate queries.
// It uses patrickmn/go-cache for TTL-based expiry.
package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache wraps go-cache. A cache built with a non-positive TTL stores nothing.
type Cache struct {
	store   *gocache.Cache
	enabled bool

	mu  sync.Mutex
	gen uint64
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		return &Cache{store: gocache.New(gocache.NoExpiration, 0)}
	}
	return &Cache{
		store:   gocache.New(ttl, 2*ttl),
		enabled: true,
	}
}

// Get retrieves a value from the cache.
func (c *Cache) Get(key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.store.Get(key)
}

// Generation changes on every Clear. Capture it before computing a value
// and store with SetIfCurrent.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfCurrent stores value with the default TTL, but only if no Clear
// happened since gen was read.
func (c *Cache) SetIfCurrent(gen uint64, key string, value any) bool {
	if !c.enabled {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.store.Set(key, value, gocache.DefaultExpiration)
	return true
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.store.Flush()
}

// ScopeKey namespaces key by owner; nil owner is the unscoped view.
func ScopeKey(key string, owner *string) string {
	if owner == nil {
		return key + ":all"
	}
	return key + ":user:" + *owner
}
