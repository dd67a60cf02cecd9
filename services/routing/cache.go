package routing

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/upb/llm-orchestrator/models"
)

// Cache defaults
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Second
)

// cacheEntry holds one resolved process name; found=false caches a miss
type cacheEntry struct {
	name       string
	route      models.Route
	found      bool
	insertedAt time.Time
	element    *list.Element
}

func (e *cacheEntry) isExpired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.insertedAt) > ttl
}

// CachedLookup is an LRU cache with TTL in front of another lookup.
// Misses are cached too, so unmapped processes do not hit the store on every request.
type CachedLookup struct {
	next    ProcessMappingLookup
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// NewCachedLookup wraps next; non-positive size or ttl fall back to the defaults
func NewCachedLookup(next ProcessMappingLookup, maxSize int, ttl time.Duration) *CachedLookup {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedLookup{
		next:    next,
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Lookup implements ProcessMappingLookup. Errors from next are not cached.
func (c *CachedLookup) Lookup(ctx context.Context, processName string) (models.Route, bool, error) {
	if route, found, ok := c.get(processName); ok {
		return route, found, nil
	}

	route, found, err := c.next.Lookup(ctx, processName)
	if err != nil {
		return models.Route{}, false, err
	}
	c.set(processName, route, found)
	return route, found, nil
}

func (c *CachedLookup) get(name string) (models.Route, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[name]
	if !exists || entry.isExpired(c.ttl, c.now()) {
		c.misses++
		if exists {
			c.removeEntry(name)
		}
		return models.Route{}, false, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return entry.route, entry.found, true
}

func (c *CachedLookup) set(name string, route models.Route, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[name]; exists {
		entry.route = route
		entry.found = found
		entry.insertedAt = c.now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		name:       name,
		route:      route,
		found:      found,
		insertedAt: c.now(),
	}
	entry.element = c.lruList.PushFront(name)
	c.entries[name] = entry
}

// Invalidate drops one process name
func (c *CachedLookup) Invalidate(processName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(processName)
}

// Clear drops every entry
func (c *CachedLookup) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns cache statistics
func (c *CachedLookup) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rate float64
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
	}
}

// removeEntry must be called with the lock held
func (c *CachedLookup) removeEntry(name string) {
	if entry, exists := c.entries[name]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, name)
	}
}

// evictLRU must be called with the lock held
func (c *CachedLookup) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	name := back.Value.(string)
	c.lruList.Remove(back)
	delete(c.entries, name)
}
