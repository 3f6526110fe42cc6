package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/config"
	"github.com/hatefsystems/search-engine-core-sub000/model"
)

func testProfile(id, slug string) *model.Profile {
	return &model.Profile{
		ID:            id,
		Type:          model.ProfileTypePerson,
		Slug:          slug,
		PreviousSlugs: []string{"old-" + slug},
		DisplayName:   "Test",
		Body:          json.RawMessage(`{"bio":"hi"}`),
	}
}

func TestProfileCacheBasicOperations(t *testing.T) {
	cfg := config.CacheConfig{
		Enabled:        true,
		MaxSizeMB:      10,
		SlugTTLSeconds: 2, // 2 seconds for testing
		CounterSize:    1000,
	}

	cache, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer cache.Close()

	t.Run("Set_and_Get", func(t *testing.T) {
		p := testProfile("p1", "john-doe")

		if ok := cache.Set(p); !ok {
			t.Error("Failed to set value in cache")
		}
		cache.Wait()

		got, found := cache.Get("p1")
		if !found {
			t.Fatal("Value not found in cache")
		}
		if got.Slug != "john-doe" {
			t.Errorf("Expected slug john-doe, got %s", got.Slug)
		}
	})

	t.Run("Get_Returns_Copy", func(t *testing.T) {
		p := testProfile("p2", "copy")
		cache.Set(p)
		cache.Wait()

		first, _ := cache.Get("p2")
		first.PreviousSlugs[0] = "mutated"
		first.Slug = "mutated"

		second, found := cache.Get("p2")
		if !found {
			t.Fatal("Value not found in cache")
		}
		if second.Slug != "copy" || second.PreviousSlugs[0] != "old-copy" {
			t.Errorf("cached snapshot was mutated through a returned copy: %+v", second)
		}
	})

	t.Run("Get_NonExistent", func(t *testing.T) {
		_, found := cache.Get("nonexistent_key")
		if found {
			t.Error("Expected key not to be found")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		cache.Set(testProfile("p3", "delete-me"))
		cache.Wait()

		if _, found := cache.Get("p3"); !found {
			t.Error("Value should exist before deletion")
		}

		cache.Delete("p3")
		cache.Wait()

		if _, found := cache.Get("p3"); found {
			t.Error("Value should not exist after deletion")
		}
	})
}

func TestProfileCacheTTL(t *testing.T) {
	cfg := config.CacheConfig{
		Enabled:        true,
		MaxSizeMB:      10,
		SlugTTLSeconds: 1, // 1 second TTL
		CounterSize:    1000,
	}

	cache, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer cache.Close()

	cache.Set(testProfile("ttl", "ttl"))
	cache.Wait()

	if _, found := cache.Get("ttl"); !found {
		t.Error("Value should exist immediately after setting")
	}

	// Wait for TTL to expire
	time.Sleep(1200 * time.Millisecond)

	if _, found := cache.Get("ttl"); found {
		t.Error("Value should have expired after TTL")
	}
}

func TestProfileCacheMetrics(t *testing.T) {
	cfg := config.CacheConfig{
		Enabled:        true,
		MaxSizeMB:      10,
		SlugTTLSeconds: 60,
		CounterSize:    1000,
	}

	cache, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer cache.Close()

	cache.Set(testProfile("m1", "m1"))
	cache.Set(testProfile("m2", "m2"))
	cache.Wait()

	cache.Get("m1")     // Hit
	cache.Get("m2")     // Hit
	cache.Get("absent") // Miss

	metrics := cache.GetMetricsSnapshot()

	// Ristretto metrics are async, so be lenient in assertions
	if metrics.TTLSeconds != 60 {
		t.Errorf("Expected TTL 60 seconds, got %d", metrics.TTLSeconds)
	}

	t.Logf("Cache metrics: Hits=%d, Misses=%d, KeysAdded=%d, HitRatio=%.2f",
		metrics.Hits, metrics.Misses, metrics.KeysAdded, metrics.HitRatio)
}

func TestProfileCacheNilHandling(t *testing.T) {
	var nilCache *ProfileCache
	empty := &ProfileCache{client: nil}

	for name, cache := range map[string]*ProfileCache{"nil pointer": nilCache, "nil client": empty} {
		t.Run(name, func(t *testing.T) {
			// All operations should be safe
			if _, found := cache.Get("key"); found {
				t.Error("Get should return false")
			}
			if cache.Set(testProfile("key", "key")) {
				t.Error("Set should return false")
			}
			cache.Delete("key")
			cache.Wait()
			cache.Close()

			if metrics := cache.GetMetricsSnapshot(); metrics.Hits != 0 {
				t.Error("Nil cache should return zero metrics")
			}
		})
	}
}
