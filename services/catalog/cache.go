package catalog

import (
	"container/list"
	"strconv"
	"sync"
	"time"
)

// CacheKey identifies one snapshot of an option list
type CacheKey struct {
	Source string
	Cursor uint64
}

// String returns a string representation of the cache key
func (k CacheKey) String() string {
	return k.Source + "@" + strconv.FormatUint(k.Cursor, 10)
}

// cacheEntry represents a single cache entry with TTL
type cacheEntry[T any] struct {
	key        CacheKey
	value      T
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry[T]) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// Cache is an in-memory LRU cache with TTL for catalog snapshots
// Thread-safe implementation using sync.RWMutex
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry[T] // Key: CacheKey.String()
	lruList *list.List                // Doubly linked list for LRU tracking
	maxSize int                       // Maximum number of entries
	ttl     time.Duration             // Time-to-live for entries
	hits    uint64                    // Cache hit counter
	misses  uint64                    // Cache miss counter
}

// NewCache creates a new Cache with specified max size and TTL
func NewCache[T any](maxSize int, ttl time.Duration) *Cache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache[T]{
		entries: make(map[string]*cacheEntry[T]),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a snapshot from cache
// Returns false if not found or expired
func (c *Cache[T]) Get(key CacheKey) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	keyStr := key.String()
	entry, exists := c.entries[keyStr]

	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(keyStr)
		}
		return zero, false
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.value, true
}

// Set stores a snapshot in cache
func (c *Cache[T]) Set(key CacheKey, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := key.String()

	if entry, exists := c.entries[keyStr]; exists {
		entry.value = value
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	// Evict least recently used entry if cache is full
	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry[T]{
		key:        key,
		value:      value,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(keyStr)
	c.entries[keyStr] = entry
}

// Invalidate removes a specific cache entry
func (c *Cache[T]) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(key.String())
}

// InvalidateBefore removes every snapshot of source older than cursor
func (c *Cache[T]) InvalidateBefore(source string, cursor uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for keyStr, entry := range c.entries {
		if entry.key.Source == source && entry.key.Cursor < cursor {
			c.removeEntry(keyStr)
			removed++
		}
	}
	return removed
}

// Clear removes all entries from the cache
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry[T])
	c.lruList.Init()
}

// Stats returns cache statistics
func (c *Cache[T]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.calculateHitRate(),
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// calculateHitRate calculates the cache hit rate
func (c *Cache[T]) calculateHitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *Cache[T]) removeEntry(keyStr string) {
	if entry, exists := c.entries[keyStr]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, keyStr)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *Cache[T]) evictLRU() {
	backElement := c.lruList.Back()
	if backElement == nil {
		return
	}
	keyStr := backElement.Value.(string)
	c.lruList.Remove(backElement)
	delete(c.entries, keyStr)
}

// CleanupExpired removes all expired entries
func (c *Cache[T]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiredKeys := make([]string, 0)
	for keyStr, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			expiredKeys = append(expiredKeys, keyStr)
		}
	}
	for _, keyStr := range expiredKeys {
		c.removeEntry(keyStr)
	}

	return len(expiredKeys)
}
