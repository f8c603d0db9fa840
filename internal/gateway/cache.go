package gateway

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cache is a TTL response cache for vendor calls. It is owned by the
// composition root and passed to the gateway by reference; entries are
// bounded by both expiry and a max entry count.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL and entry bound.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
		now:        time.Now,
	}
}

// Key builds the deterministic cache key for (api, endpoint, payload).
func Key(api API, endpoint string, payload []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", api, endpoint)
	h.Write(payload)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get returns the cached value for key when present and unexpired.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value under key, evicting as needed to stay bounded.
func (c *Cache) Set(key string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries; when none are expired it drops the
// entry closest to expiry so writes always make progress.
func (c *Cache) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey = k
			oldest = e.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}
