package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// ContentCache memoizes captions by content hash for the process lifetime.
// It has no eviction; entries go away only through Clear.
type ContentCache struct {
	enabled bool

	mu      sync.RWMutex
	entries map[string]string

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Enabled bool  `json:"enabled"`
	Size    int   `json:"size"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// New creates a ContentCache. A disabled cache never reports hits and
// silently drops stores.
func New(enabled bool) *ContentCache {
	return &ContentCache{
		enabled: enabled,
		entries: make(map[string]string),
	}
}

// ContentHash returns the hex SHA-256 digest used as the cache key.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Enabled reports whether lookups and stores are active.
func (c *ContentCache) Enabled() bool {
	return c.enabled
}

// Lookup returns the caption stored under hash.
func (c *ContentCache) Lookup(hash string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	c.mu.RLock()
	caption, ok := c.entries[hash]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return caption, ok
}

// Store records caption under hash. Concurrent stores for the same hash are
// last-writer-wins.
func (c *ContentCache) Store(hash, caption string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	c.entries[hash] = caption
	c.mu.Unlock()
}

// Clear drops every entry and resets counters.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]string)
	c.mu.Unlock()

	c.hits.Store(0)
	c.misses.Store(0)
}

// Size returns the number of cached captions.
func (c *ContentCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns current counters.
func (c *ContentCache) Stats() Stats {
	return Stats{
		Enabled: c.enabled,
		Size:    c.Size(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
