package cache

import (
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/config"
	"github.com/hatefsystems/search-engine-core-sub000/model"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"
)

// ProfileCache wraps Ristretto to hold profile snapshots keyed by profile id.
// It sits behind SlugCache: the slug cache answers "which profile", this one
// answers "what does it look like" without a store round trip.
// A nil *ProfileCache is valid and caches nothing.
type ProfileCache struct {
	client *ristretto.Cache
	ttl    time.Duration
}

// New creates a profile cache. Entries live as long as slug cache entries.
func New(cfg config.CacheConfig) (*ProfileCache, error) {
	// Calculate max cost in bytes (convert MB to bytes)
	maxCost := int64(cfg.MaxSizeMB) * 1024 * 1024

	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(cfg.CounterSize), // Number of keys to track frequency for admission
		MaxCost:     maxCost,                // Maximum cache size in bytes
		BufferItems: 64,                     // Number of keys per Get buffer
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(cfg.SlugTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = DefaultSlugTTL
	}

	log.Info().
		Int("max_size_mb", cfg.MaxSizeMB).
		Dur("ttl", ttl).
		Int("counter_size", cfg.CounterSize).
		Msg("Profile cache initialized successfully")

	return &ProfileCache{client: client, ttl: ttl}, nil
}

// Get returns a private copy of the cached profile
func (c *ProfileCache) Get(id string) (*model.Profile, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	v, ok := c.client.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := v.(*model.Profile)
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Set stores a copy of p. Admission is asynchronous and may be refused by TinyLFU.
func (c *ProfileCache) Set(p *model.Profile) bool {
	if c == nil || c.client == nil || p == nil {
		return false
	}
	return c.client.SetWithTTL(p.ID, p.Clone(), profileCost(p), c.ttl)
}

// Delete removes a profile from the cache
func (c *ProfileCache) Delete(id string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(id)
}

// Wait blocks until buffered writes are applied
func (c *ProfileCache) Wait() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Wait()
}

// Close cleanly shuts down the cache
func (c *ProfileCache) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
		log.Info().Msg("Profile cache closed")
	}
}

// profileCost approximates the memory held by a snapshot
func profileCost(p *model.Profile) int64 {
	cost := 256 + len(p.ID) + len(p.Slug) + len(p.DisplayName) + len(p.Body) + len(p.OwnerTokenHash)
	for _, s := range p.PreviousSlugs {
		cost += len(s) + 16
	}
	return int64(cost)
}

// MetricsSnapshot is a point-in-time copy of Ristretto's counters
type MetricsSnapshot struct {
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	KeysAdded    uint64  `json:"keys_added"`
	KeysEvicted  uint64  `json:"keys_evicted"`
	CostAdded    uint64  `json:"cost_added"`
	CostEvicted  uint64  `json:"cost_evicted"`
	SetsDropped  uint64  `json:"sets_dropped"`
	SetsRejected uint64  `json:"sets_rejected"`
	GetsDropped  uint64  `json:"gets_dropped"`
	HitRatio     float64 `json:"hit_ratio"`
	TTLSeconds   int     `json:"ttl_seconds"`
}

// GetMetricsSnapshot returns current cache metrics as a snapshot
func (c *ProfileCache) GetMetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{}
	}
	if c.client == nil || c.client.Metrics == nil {
		return MetricsSnapshot{TTLSeconds: int(c.ttl.Seconds())}
	}

	m := c.client.Metrics
	return MetricsSnapshot{
		Hits:         m.Hits(),
		Misses:       m.Misses(),
		KeysAdded:    m.KeysAdded(),
		KeysEvicted:  m.KeysEvicted(),
		CostAdded:    m.CostAdded(),
		CostEvicted:  m.CostEvicted(),
		SetsDropped:  m.SetsDropped(),
		SetsRejected: m.SetsRejected(),
		GetsDropped:  m.GetsDropped(),
		HitRatio:     m.Ratio(),
		TTLSeconds:   int(c.ttl.Seconds()),
	}
}
