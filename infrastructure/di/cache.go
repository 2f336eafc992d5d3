package di

import (
	"context"
	"sync"
	"time"

	"storyloom-backend/application/ports"
)

// cacheSweepInterval controls how often expired entries are purged.
// Reads already skip stale entries, so the sweep only bounds memory.
const cacheSweepInterval = time.Minute

// InMemoryCache backs the query bus caching middleware. A single API
// instance is the expected deployment, so no external cache is wired.
type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
}

var _ ports.Cache = (*InMemoryCache)(nil)

type cacheItem struct {
	value     interface{}
	expiresAt time.Time
}

// NewInMemoryCache creates the cache and starts its sweep goroutine,
// which lives for the life of the process.
func NewInMemoryCache() *InMemoryCache {
	cache := &InMemoryCache{items: make(map[string]cacheItem)}
	go cache.sweep()
	return cache
}

// Get returns the cached value, treating expired entries as misses
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

// Set stores a value that expires after ttl
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes one entry
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Clear drops every entry
func (c *InMemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
	return nil
}

func (c *InMemoryCache) sweep() {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for key, item := range c.items {
			if now.After(item.expiresAt) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}
