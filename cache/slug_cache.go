package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultSlugTTL          = 5 * time.Minute
	DefaultSlugMaxSize      = 10000
	DefaultSlugCleanupEvery = 100
)

type slugEntry struct {
	slug       string
	profileID  string
	insertedAt time.Time
	elem       *list.Element // position in the insertion-order list
}

// SlugCache is a bounded TTL map from slug to profile id.
// Entries expire ttl after insertion; when full, the oldest insertion is evicted.
// All methods are safe for concurrent use and never block on I/O.
type SlugCache struct {
	mu           sync.Mutex
	entries      map[string]*slugEntry
	order        *list.List // front = oldest insertion
	ttl          time.Duration
	maxSize      int
	cleanupEvery int
	puts         int
	now          func() time.Time

	hits, misses, expired, evicted uint64
}

// SlugCacheStats is served on /cache/metrics
type SlugCacheStats struct {
	Size       int     `json:"size"`
	MaxSize    int     `json:"max_size"`
	TTLSeconds int     `json:"ttl_seconds"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Expired    uint64  `json:"expired"`
	Evicted    uint64  `json:"evicted"`
	HitRatio   float64 `json:"hit_ratio"`
}

// NewSlugCache creates a slug cache. Non-positive arguments fall back to the defaults.
func NewSlugCache(ttl time.Duration, maxSize, cleanupEvery int) *SlugCache {
	if ttl <= 0 {
		ttl = DefaultSlugTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultSlugMaxSize
	}
	if cleanupEvery <= 0 {
		cleanupEvery = DefaultSlugCleanupEvery
	}
	return &SlugCache{
		entries:      make(map[string]*slugEntry),
		order:        list.New(),
		ttl:          ttl,
		maxSize:      maxSize,
		cleanupEvery: cleanupEvery,
		now:          time.Now,
	}
}

// Get returns the profile id cached for slug. An expired entry is evicted and reported as a miss.
func (c *SlugCache) Get(slug string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[slug]
	if !ok {
		c.misses++
		return "", false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.removeLocked(e)
		c.expired++
		c.misses++
		return "", false
	}
	c.hits++
	return e.profileID, true
}

// Put caches slug -> profileID, replacing any previous entry for slug
func (c *SlugCache) Put(slug, profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[slug]; ok {
		c.removeLocked(e)
	}

	e := &slugEntry{slug: slug, profileID: profileID, insertedAt: c.now()}
	e.elem = c.order.PushBack(e)
	c.entries[slug] = e

	for len(c.entries) > c.maxSize {
		oldest := c.order.Front().Value.(*slugEntry)
		c.removeLocked(oldest)
		c.evicted++
	}

	c.puts++
	if c.puts%c.cleanupEvery == 0 {
		c.expired += uint64(c.cleanupLocked())
	}
}

// Remove drops the entry for slug, if any
func (c *SlugCache) Remove(slug string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[slug]; ok {
		c.removeLocked(e)
	}
}

// Clear drops every entry. Counters are kept.
func (c *SlugCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*slugEntry)
	c.order.Init()
}

// CleanupExpired removes all expired entries and returns how many were dropped
func (c *SlugCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.cleanupLocked()
	c.expired += uint64(n)
	return n
}

// Len returns the number of entries, expired or not
func (c *SlugCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache counters
func (c *SlugCache) Stats() SlugCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	ratio := 0.0
	if total := c.hits + c.misses; total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return SlugCacheStats{
		Size:       len(c.entries),
		MaxSize:    c.maxSize,
		TTLSeconds: int(c.ttl.Seconds()),
		Hits:       c.hits,
		Misses:     c.misses,
		Expired:    c.expired,
		Evicted:    c.evicted,
		HitRatio:   ratio,
	}
}

// cleanupLocked walks from the oldest insertion and stops at the first live entry.
// Insertion order equals expiry order because every entry shares one ttl.
func (c *SlugCache) cleanupLocked() int {
	now := c.now()
	n := 0
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		e := front.Value.(*slugEntry)
		if now.Sub(e.insertedAt) < c.ttl {
			break
		}
		c.removeLocked(e)
		n++
	}
	return n
}

func (c *SlugCache) removeLocked(e *slugEntry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.slug)
}
