package research

import (
	"context"
	"sync"
	"time"

	"briefer/internal/logging"
)

// CacheEntry holds a cached page.
type CacheEntry struct {
	Key       string
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ResearchCache is a bounded in-memory TTL cache for fetched pages.
type ResearchCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewResearchCache creates a new cache with the given size limit and TTL.
func NewResearchCache(maxSize int, ttl time.Duration) *ResearchCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ResearchCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a live entry by key.
func (c *ResearchCache) Get(key string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry, true
}

// Set stores a value, evicting the oldest entry when full.
func (c *ResearchCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	now := c.now()
	c.entries[key] = &CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
}

// evictOldest drops expired entries, or the single oldest one if none expired.
// Caller must hold the write lock.
func (c *ResearchCache) evictOldest() {
	now := c.now()
	var oldestKey string
	var oldest time.Time
	expired := 0
	for k, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, k)
			expired++
			continue
		}
		if oldestKey == "" || e.CreatedAt.Before(oldest) {
			oldestKey, oldest = k, e.CreatedAt
		}
	}
	if expired == 0 && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Delete removes an entry.
func (c *ResearchCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *ResearchCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CacheEntry)
}

// Size returns the number of entries, expired ones included.
func (c *ResearchCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CachedFetcher serves repeated URLs from a ResearchCache. Empty results are
// not cached so a transient failure can be retried on the next run.
type CachedFetcher struct {
	next  Fetcher
	cache *ResearchCache
}

// NewCachedFetcher wraps next with cache.
func NewCachedFetcher(next Fetcher, cache *ResearchCache) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cache}
}

// Fetch implements Fetcher.
func (f *CachedFetcher) Fetch(ctx context.Context, url string) string {
	if entry, ok := f.cache.Get(url); ok {
		logging.ResearchDebug("cache hit: %s", url)
		return entry.Value
	}
	text := f.next.Fetch(ctx, url)
	if text != "" {
		f.cache.Set(url, text)
	}
	return text
}
