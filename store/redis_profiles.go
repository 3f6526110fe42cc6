package store

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/rs/zerolog/log"
)

// CreateProfile stores p and claims its slug in one transaction
func (s *RedisStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	data, err := encodeProfile(p)
	if err != nil {
		return NewStoreError("CreateProfile", "profile", p.ID, "failed to encode profile", ErrInvalidData)
	}

	txf := func(tx *redis.Tx) error {
		_, _, claimed, err := readClaim(ctx, tx, p.Slug)
		if err != nil {
			return err
		}
		if claimed {
			return NewStoreError("CreateProfile", "profile", p.Slug, "slug already claimed", ErrSlugConflict)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, profileKey(p.ID), data, 0)
			pipe.Set(ctx, slugKey(p.Slug), claimValue(p.ID, claimKindCurrent), 0)
			pipe.ZAdd(ctx, profilesCreatedKey, &redis.Z{Score: float64(p.CreatedAt.UnixMilli()), Member: p.ID})
			return nil
		})
		return err
	}

	return s.watch(ctx, "CreateProfile", p.ID, txf, slugKey(p.Slug), profileKey(p.ID))
}

// GetProfile returns a live profile
func (s *RedisStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	p, err := getProfile(ctx, s.rdb, "GetProfile", id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted() {
		return nil, NewStoreError("GetProfile", "profile", id, "profile deleted", ErrNotFound)
	}
	return p, nil
}

// GetProfileAny returns a profile whether or not it is soft-deleted
func (s *RedisStore) GetProfileAny(ctx context.Context, id string) (*model.Profile, error) {
	return getProfile(ctx, s.rdb, "GetProfileAny", id)
}

// findByClaim resolves a slug claim of the given kind to its live owner
func (s *RedisStore) findByClaim(ctx context.Context, op, slug, wantKind string) (*model.Profile, error) {
	id, kind, claimed, err := readClaim(ctx, s.rdb, slug)
	if err != nil {
		return nil, NewStoreError(op, "profile", slug, err.Error(), err)
	}
	if !claimed || kind != wantKind {
		return nil, NewStoreError(op, "profile", slug, "no profile for slug", ErrNotFound)
	}

	p, err := getProfile(ctx, s.rdb, op, id)
	if err != nil {
		if IsNotFound(err) {
			log.Warn().Str("slug", slug).Str("profile_id", id).Msg("Slug claim points at a missing profile")
		}
		return nil, err
	}
	if p.IsDeleted() {
		return nil, NewStoreError(op, "profile", slug, "profile deleted", ErrNotFound)
	}
	return p, nil
}

// FindBySlug returns the live profile currently at slug
func (s *RedisStore) FindBySlug(ctx context.Context, slug string) (*model.Profile, error) {
	p, err := s.findByClaim(ctx, "FindBySlug", slug, claimKindCurrent)
	if err != nil {
		return nil, err
	}
	if p.Slug != slug {
		return nil, NewStoreError("FindBySlug", "profile", slug, "stale slug claim", ErrNotFound)
	}
	return p, nil
}

// FindByPreviousSlug returns the live profile that previously used slug
func (s *RedisStore) FindByPreviousSlug(ctx context.Context, slug string) (*model.Profile, error) {
	p, err := s.findByClaim(ctx, "FindByPreviousSlug", slug, claimKindPrevious)
	if err != nil {
		return nil, err
	}
	if !p.HasPreviousSlug(slug) {
		return nil, NewStoreError("FindByPreviousSlug", "profile", slug, "stale slug claim", ErrNotFound)
	}
	return p, nil
}

// IsSlugTaken reports whether any profile claims slug
func (s *RedisStore) IsSlugTaken(ctx context.Context, slug string) (bool, error) {
	n, err := s.rdb.Exists(ctx, slugKey(slug)).Result()
	if err != nil {
		return false, NewStoreError("IsSlugTaken", "profile", slug, err.Error(), err)
	}
	return n > 0, nil
}

// UpdateProfile persists display name, body and updatedAt of a live profile
func (s *RedisStore) UpdateProfile(ctx context.Context, p *model.Profile) error {
	txf := func(tx *redis.Tx) error {
		cur, err := getProfile(ctx, tx, "UpdateProfile", p.ID)
		if err != nil {
			return err
		}
		if cur.IsDeleted() {
			return NewStoreError("UpdateProfile", "profile", p.ID, "profile deleted", ErrNotFound)
		}

		cur.DisplayName = p.DisplayName
		cur.Body = p.Body
		cur.UpdatedAt = p.UpdatedAt

		data, err := encodeProfile(cur)
		if err != nil {
			return NewStoreError("UpdateProfile", "profile", p.ID, "failed to encode profile", ErrInvalidData)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, profileKey(p.ID), data, 0)
			return nil
		})
		return err
	}

	return s.watch(ctx, "UpdateProfile", p.ID, txf, profileKey(p.ID))
}

// UpdateSlug claims newSlug as current and demotes the old slug to previous.
// A profile may move back to one of its own previous slugs.
func (s *RedisStore) UpdateSlug(ctx context.Context, id, newSlug string, at time.Time) (*model.Profile, error) {
	var updated *model.Profile

	txf := func(tx *redis.Tx) error {
		cur, err := getProfile(ctx, tx, "UpdateSlug", id)
		if err != nil {
			return err
		}
		if cur.IsDeleted() {
			return NewStoreError("UpdateSlug", "profile", id, "profile deleted", ErrNotFound)
		}
		if cur.Slug == newSlug {
			updated = cur
			return nil
		}

		owner, _, claimed, err := readClaim(ctx, tx, newSlug)
		if err != nil {
			return err
		}
		if claimed && owner != id {
			return NewStoreError("UpdateSlug", "profile", newSlug, "slug already claimed", ErrSlugConflict)
		}

		oldSlug := cur.Slug
		cur.PreviousSlugs = append(withoutSlug(cur.PreviousSlugs, newSlug), oldSlug)
		cur.Slug = newSlug
		changed := at
		cur.SlugChangedAt = &changed
		cur.UpdatedAt = at

		data, err := encodeProfile(cur)
		if err != nil {
			return NewStoreError("UpdateSlug", "profile", id, "failed to encode profile", ErrInvalidData)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, profileKey(id), data, 0)
			pipe.Set(ctx, slugKey(newSlug), claimValue(id, claimKindCurrent), 0)
			pipe.Set(ctx, slugKey(oldSlug), claimValue(id, claimKindPrevious), 0)
			return nil
		})
		if err == nil {
			updated = cur
		}
		return err
	}

	if err := s.watch(ctx, "UpdateSlug", id, txf, profileKey(id), slugKey(newSlug)); err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDeleteProfile marks a live profile deleted. Its slugs stay claimed.
func (s *RedisStore) SoftDeleteProfile(ctx context.Context, id string, at time.Time) (*model.Profile, error) {
	var deleted *model.Profile

	txf := func(tx *redis.Tx) error {
		cur, err := getProfile(ctx, tx, "SoftDeleteProfile", id)
		if err != nil {
			return err
		}
		if cur.IsDeleted() {
			return NewStoreError("SoftDeleteProfile", "profile", id, "profile already deleted", ErrNotFound)
		}

		deletedAt := at
		cur.DeletedAt = &deletedAt
		cur.UpdatedAt = at

		data, err := encodeProfile(cur)
		if err != nil {
			return NewStoreError("SoftDeleteProfile", "profile", id, "failed to encode profile", ErrInvalidData)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, profileKey(id), data, 0)
			pipe.ZRem(ctx, profilesCreatedKey, id)
			pipe.ZAdd(ctx, profilesDeletedKey, &redis.Z{Score: float64(at.UnixMilli()), Member: id})
			return nil
		})
		if err == nil {
			deleted = cur
		}
		return err
	}

	if err := s.watch(ctx, "SoftDeleteProfile", id, txf, profileKey(id)); err != nil {
		return nil, err
	}
	return deleted, nil
}

// RestoreProfile clears the deletion marker of a soft-deleted profile
func (s *RedisStore) RestoreProfile(ctx context.Context, id string) (*model.Profile, error) {
	var restored *model.Profile

	txf := func(tx *redis.Tx) error {
		cur, err := getProfile(ctx, tx, "RestoreProfile", id)
		if err != nil {
			return err
		}
		if !cur.IsDeleted() {
			restored = cur
			return nil
		}

		cur.DeletedAt = nil
		cur.UpdatedAt = time.Now().UTC()

		data, err := encodeProfile(cur)
		if err != nil {
			return NewStoreError("RestoreProfile", "profile", id, "failed to encode profile", ErrInvalidData)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, profileKey(id), data, 0)
			pipe.ZRem(ctx, profilesDeletedKey, id)
			pipe.ZAdd(ctx, profilesCreatedKey, &redis.Z{Score: float64(cur.CreatedAt.UnixMilli()), Member: id})
			return nil
		})
		if err == nil {
			restored = cur
		}
		return err
	}

	if err := s.watch(ctx, "RestoreProfile", id, txf, profileKey(id)); err != nil {
		return nil, err
	}
	return restored, nil
}

// PurgeDeletedProfiles hard-deletes profiles soft-deleted before the cutoff.
// Their links are removed and every slug they claimed becomes free.
func (s *RedisStore) PurgeDeletedProfiles(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, profilesDeletedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(CutoffMillis(before), 10),
	}).Result()
	if err != nil {
		return 0, NewStoreError("PurgeDeletedProfiles", "profile", "", err.Error(), err)
	}

	var purged int64
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		ok, err := s.purgeProfile(ctx, id, before)
		if err != nil {
			return purged, err
		}
		if ok {
			purged++
		}
	}
	return purged, nil
}

func (s *RedisStore) purgeProfile(ctx context.Context, id string, before time.Time) (bool, error) {
	purged := false

	txf := func(tx *redis.Tx) error {
		cur, err := getProfile(ctx, tx, "PurgeDeletedProfiles", id)
		if IsNotFound(err) {
			// Dangling index entry
			return tx.ZRem(ctx, profilesDeletedKey, id).Err()
		} else if err != nil {
			return err
		}
		if !cur.IsDeleted() || !cur.DeletedAt.Before(before) {
			return nil
		}

		// Release only claims this profile still owns
		var claims []string
		for _, slug := range append([]string{cur.Slug}, cur.PreviousSlugs...) {
			owner, _, claimed, err := readClaim(ctx, tx, slug)
			if err != nil {
				return err
			}
			if claimed && owner == id {
				claims = append(claims, slugKey(slug))
			}
		}

		linkIDs, err := tx.ZRange(ctx, profileLinksKey(id), 0, -1).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, profileKey(id), profileLinksKey(id))
			if len(claims) > 0 {
				pipe.Del(ctx, claims...)
			}
			for _, linkID := range linkIDs {
				pipe.Del(ctx, linkKey(linkID))
			}
			pipe.ZRem(ctx, profilesDeletedKey, id)
			return nil
		})
		if err == nil {
			purged = true
		}
		return err
	}

	if err := s.watch(ctx, "PurgeDeletedProfiles", id, txf, profileKey(id)); err != nil {
		return false, err
	}
	if purged {
		log.Info().Str("profile_id", id).Msg("Purged deleted profile")
	}
	return purged, nil
}

// ListProfiles returns live profiles, newest first
func (s *RedisStore) ListProfiles(ctx context.Context, offset, limit int) ([]*model.Profile, int64, error) {
	total, err := s.rdb.ZCard(ctx, profilesCreatedKey).Result()
	if err != nil {
		return nil, 0, NewStoreError("ListProfiles", "profile", "", err.Error(), err)
	}

	profiles := []*model.Profile{}
	if limit <= 0 || int64(offset) >= total {
		return profiles, total, nil
	}

	ids, err := s.rdb.ZRevRange(ctx, profilesCreatedKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, NewStoreError("ListProfiles", "profile", "", err.Error(), err)
	}
	if len(ids) == 0 {
		return profiles, total, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, NewStoreError("ListProfiles", "profile", "", err.Error(), err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // deleted between ZREVRANGE and MGET
		}
		p, err := decodeProfile([]byte(raw))
		if err != nil {
			log.Error().Err(err).Str("profile_id", ids[i]).Msg("Failed to decode profile")
			continue
		}
		if !p.IsDeleted() {
			profiles = append(profiles, p)
		}
	}
	return profiles, total, nil
}

// withoutSlug returns slugs minus every occurrence of slug
func withoutSlug(slugs []string, slug string) []string {
	out := make([]string, 0, len(slugs)+1)
	for _, s := range slugs {
		if s != slug {
			out = append(out, s)
		}
	}
	return out
}
