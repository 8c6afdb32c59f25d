package memory

import (
	"container/list"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 100
)

// CachedStore memoizes Search results per (user, query, limit, filters).
// Entries expire after the TTL and the least recently used entry is evicted
// once the cache is full. Add drops every cached search of that user.
type CachedStore struct {
	Store

	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	order   *list.List
	entries map[string]*list.Element
}

type cacheEntry struct {
	key     string
	userID  string
	results []Entry
	stored  time.Time
}

// NewCachedStore wraps s. Non-positive ttl or size take the defaults.
func NewCachedStore(s Store, ttl time.Duration, size int) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if size <= 0 {
		size = defaultCacheSize
	}
	return &CachedStore{
		Store:   s,
		ttl:     ttl,
		maxSize: size,
		now:     time.Now,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func searchKey(query, userID string, limit int, filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%s", userID, limit, query)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, filters[k])
	}
	return b.String()
}

func (c *CachedStore) Search(ctx context.Context, query, userID string, limit int, filters map[string]string) ([]Entry, error) {
	key := searchKey(query, userID, limit, filters)
	if res, ok := c.get(key); ok {
		return res, nil
	}

	res, err := c.Store.Search(ctx, query, userID, limit, filters)
	if err != nil {
		return nil, err
	}
	c.put(key, userID, res)
	return res, nil
}

func (c *CachedStore) Add(ctx context.Context, messages []Message, userID string, metadata map[string]any) (AddResult, error) {
	res, err := c.Store.Add(ctx, messages, userID, metadata)
	if err == nil {
		c.invalidateUser(userID)
	}
	return res, err
}

// Len returns the number of cached searches, expired ones included.
func (c *CachedStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedStore) get(key string) ([]Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if c.now().Sub(e.stored) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.results, true
}

func (c *CachedStore) put(key, userID string, results []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry)
		e.results = results
		e.stored = c.now()
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, userID: userID, results: results, stored: c.now()})
}

func (c *CachedStore) invalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if e := el.Value.(*cacheEntry); e.userID == userID {
			c.order.Remove(el)
			delete(c.entries, e.key)
		}
		el = next
	}
}
