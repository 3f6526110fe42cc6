package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/hatefsystems/search-engine-core-sub000/model"
)

const (
	profileKeyPrefix   = "profile:"
	slugKeyPrefix      = "slug:"
	linkKeyPrefix      = "link:"
	profileLinksPrefix = "profile_links:"
	profilesCreatedKey = "profiles:created" // ZSET id -> createdAt ms, live profiles only
	profilesDeletedKey = "profiles:deleted" // ZSET id -> deletedAt ms
	clickLinkPrefix    = "link_click_analytics:link:"
	clickProfilePrefix = "link_click_analytics:profile:"
	viewProfilePrefix  = "profile_view_analytics:profile:"
	clickKeysRegistry  = "link_click_analytics:keys"
	viewKeysRegistry   = "profile_view_analytics:keys"
	claimKindCurrent   = "current"
	claimKindPrevious  = "previous"
	maxWatchRetries    = 3
)

func profileKey(id string) string { return profileKeyPrefix + id }
func slugKey(slug string) string { return slugKeyPrefix + slug }
func linkKey(id string) string { return linkKeyPrefix + id }
func profileLinksKey(id string) string { return profileLinksPrefix + id }
func clickLinkKey(id string) string { return clickLinkPrefix + id }
func clickProfileKey(id string) string { return clickProfilePrefix + id }
func viewProfileKey(id string) string { return viewProfilePrefix + id }
func claimValue(id, kind string) string { return id + "|" + kind }

// parseClaim splits a slug claim value into owner id and kind
func parseClaim(v string) (id, kind string) {
	i := strings.LastIndexByte(v, '|')
	if i < 0 {
		return v, claimKindCurrent
	}
	return v[:i], v[i+1:]
}

// profileRecord is the stored form of a profile. The owner token digest is
// hidden from API JSON, so it is carried in its own field here.
type profileRecord struct {
	model.Profile
	OwnerTokenHash string `json:"ownerTokenHash"`
}

func encodeProfile(p *model.Profile) ([]byte, error) {
	return json.Marshal(profileRecord{Profile: *p, OwnerTokenHash: p.OwnerTokenHash})
}

func decodeProfile(data []byte) (*model.Profile, error) {
	var rec profileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	p := rec.Profile
	p.OwnerTokenHash = rec.OwnerTokenHash
	return &p, nil
}

// RedisStore implements Store on a single Redis instance
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// keyReader is satisfied by both *redis.Client and a watched *redis.Tx
type keyReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// getProfile loads a profile through the client or a watched transaction
func getProfile(ctx context.Context, c keyReader, op, id string) (*model.Profile, error) {
	data, err := c.Get(ctx, profileKey(id)).Bytes()
	if err == redis.Nil {
		return nil, NewStoreError(op, "profile", id, "profile not found", ErrNotFound)
	} else if err != nil {
		return nil, NewStoreError(op, "profile", id, err.Error(), err)
	}

	p, err := decodeProfile(data)
	if err != nil {
		return nil, NewStoreError(op, "profile", id, "failed to decode profile", ErrInvalidData)
	}
	return p, nil
}

// readClaim returns the owner of a slug claim, or ok=false when the slug is free
func readClaim(ctx context.Context, c keyReader, slug string) (id, kind string, ok bool, err error) {
	v, err := c.Get(ctx, slugKey(slug)).Result()
	if err == redis.Nil {
		return "", "", false, nil
	} else if err != nil {
		return "", "", false, err
	}
	id, kind = parseClaim(v)
	return id, kind, true, nil
}

// watch runs fn in an optimistic transaction on keys. A transaction that
// keeps losing the race is reported as a slug conflict.
func (s *RedisStore) watch(ctx context.Context, op, id string, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = s.rdb.Watch(ctx, fn, keys...)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			var se *StoreError
			if errors.As(err, &se) {
				return err
			}
			return NewStoreError(op, "profile", id, err.Error(), err)
		}
	}
	return NewStoreError(op, "profile", id, "concurrent slug update", ErrSlugConflict)
}
