package cache

import (
	"sync"
	"time"
)

// CacheEntry represents a cached item with expiration
type CacheEntry[V any] struct {
	Value      V
	Expiration time.Time
}

// IsExpired checks if the cache entry has expired at now
func (e *CacheEntry[V]) IsExpired(now time.Time) bool {
	return now.After(e.Expiration)
}

// MemoryCache implements a simple in-memory TTL cache
type MemoryCache[V any] struct {
	items map[string]*CacheEntry[V]
	mutex sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a new memory cache and starts its janitor
func NewMemoryCache[V any](ttl time.Duration) *MemoryCache[V] {
	cache := newMemoryCache[V](ttl, time.Now)

	// Start cleanup goroutine
	go cache.cleanupExpired(5 * time.Minute)

	return cache
}

func newMemoryCache[V any](ttl time.Duration, now func() time.Time) *MemoryCache[V] {
	return &MemoryCache[V]{
		items: make(map[string]*CacheEntry[V]),
		ttl:   ttl,
		now:   now,
		stop:  make(chan struct{}),
	}
}

// Set stores a value in the cache
func (c *MemoryCache[V]) Set(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheEntry[V]{
		Value:      value,
		Expiration: c.now().Add(c.ttl),
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.IsExpired(c.now()) {
		var zero V
		return zero, false
	}

	return entry.Value, true
}

// Delete removes a value from the cache
func (c *MemoryCache[V]) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *MemoryCache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*CacheEntry[V])
}

// Size returns the number of items in the cache
func (c *MemoryCache[V]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.items)
}

// Close stops the janitor goroutine (idempotent)
func (c *MemoryCache[V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

// cleanupExpired removes expired entries periodically
func (c *MemoryCache[V]) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purge()
		}
	}
}

func (c *MemoryCache[V]) purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, entry := range c.items {
		if entry.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

// VerdictCache remembers which audio sources were found playable
type VerdictCache struct {
	*MemoryCache[bool]
}

// NewVerdictCache creates a verdict cache with the given TTL
func NewVerdictCache(ttl time.Duration) *VerdictCache {
	return &VerdictCache{
		MemoryCache: NewMemoryCache[bool](ttl),
	}
}

// MarkValid records that url passed validation
func (vc *VerdictCache) MarkValid(url string) {
	vc.Set(url, true)
}

// IsKnownValid reports whether url passed validation within the TTL
func (vc *VerdictCache) IsKnownValid(url string) bool {
	valid, ok := vc.Get(url)
	return ok && valid
}
