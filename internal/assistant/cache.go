package assistant

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Cache stores plain-text replies keyed by CacheKey.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	// ClearExpired removes expired entries and reports how many went.
	ClearExpired(ctx context.Context) int
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeMessage lowercases, trims and collapses whitespace.
func NormalizeMessage(message string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(strings.ToLower(message)), " ")
}

// CacheKey identifies a reply by message and platform section.
func CacheKey(message, section string) string {
	return NormalizeMessage(message) + "|" + section
}

type cacheEntry struct {
	value    string
	storedAt time.Time
}

// MemoryCache is a process-local Cache. Expiry is checked on read; nothing
// sweeps in the background, callers invoke ClearExpired.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewMemoryCache creates a cache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{ttl: ttl, now: now, entries: make(map[string]cacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

func (c *MemoryCache) Set(_ context.Context, key, value string) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

func (c *MemoryCache) ClearExpired(context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
