package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the cache item has expired at now
func (c *CacheItem) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache provides thread-safe caching with TTL
type Cache struct {
	mu     sync.RWMutex
	items  map[string]*CacheItem
	ttl    time.Duration
	clock  clockwork.Clock
	hits   uint64
	misses uint64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewCache creates a new cache with the specified TTL
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithClock(ttl, clockwork.NewRealClock())
}

// NewCacheWithClock creates a cache that reads time from clock
func NewCacheWithClock(ttl time.Duration, clock clockwork.Clock) *Cache {
	cache := &Cache{
		items: make(map[string]*CacheItem),
		ttl:   ttl,
		clock: clock,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// cleanup removes expired items periodically until Close is called
func (c *Cache) cleanup() {
	defer close(c.done)

	interval := c.ttl
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			c.purgeExpired()
		}
	}
}

func (c *Cache) purgeExpired() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}
	if item.IsExpired(c.clock.Now()) {
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.hits++
	return item.Data, true
}

// Set stores an item in the cache
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem{
		Data:      data,
		ExpiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*CacheItem)
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	totalItems := len(c.items)
	expiredItems := 0

	for _, item := range c.items {
		if item.IsExpired(now) {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"hits":          c.hits,
		"misses":        c.misses,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}
