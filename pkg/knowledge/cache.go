package knowledge

import (
	"sync"
	"time"
)

// cacheEntry holds cached content with a timestamp for TTL expiration.
type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

// ttlCache is a thread-safe in-memory cache with TTL expiration.
// Expired entries are cleaned up lazily on get(); no background goroutine.
// Used for geocoding results (24h) and the CISA KEV catalog (1h).
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}
}

func (c *ttlCache) get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Since(entry.fetchedAt) > c.ttl {
		// Expired, clean up lazily.
		// Re-check under write lock: a concurrent set() may have replaced
		// the entry with a fresh one between RUnlock and Lock.
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && time.Since(current.fetchedAt) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

func (c *ttlCache) set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		value:     value,
		fetchedAt: time.Now(),
	}
	c.mu.Unlock()
}
