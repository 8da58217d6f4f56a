package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	createdAt time.Time
}

// PageCache holds rendered panel pages keyed by identifier. Pages depend
// only on configuration, so entries are valid until they expire.
type PageCache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

func New(maxEntries int, ttlSec int) *PageCache {
	return &PageCache{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        time.Duration(ttlSec) * time.Second,
		now:        time.Now,
	}
}

// Run evicts expired entries every interval until ctx is cancelled.
func (c *PageCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// Get returns cached page data and true if found and not expired.
func (c *PageCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.data, true
}

// Set stores a page in the cache.
func (c *PageCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict oldest if at capacity
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		var oldestKey string
		var oldestTime time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.createdAt.Before(oldestTime) {
				oldestKey = k
				oldestTime = e.createdAt
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[key] = &entry{
		data:      data,
		createdAt: c.now(),
	}
}

// Purge drops every entry.
func (c *PageCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

func (c *PageCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) > c.ttl {
			delete(c.entries, k)
		}
	}
}

// Stats returns cache statistics.
func (c *PageCache) Stats() (size int, maxSize int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), c.maxEntries
}
