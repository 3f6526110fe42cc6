package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/rs/zerolog/log"
)

func (s *RedisStore) getLink(ctx context.Context, op, id string) (*model.LinkBlock, error) {
	data, err := s.rdb.Get(ctx, linkKey(id)).Bytes()
	if err == redis.Nil {
		return nil, NewStoreError(op, "link", id, "link not found", ErrNotFound)
	} else if err != nil {
		return nil, NewStoreError(op, "link", id, err.Error(), err)
	}

	var l model.LinkBlock
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, NewStoreError(op, "link", id, "failed to decode link", ErrInvalidData)
	}
	return &l, nil
}

// putLink writes the link record and its position in the profile index
func (s *RedisStore) putLink(ctx context.Context, op string, l *model.LinkBlock) error {
	data, err := json.Marshal(l)
	if err != nil {
		return NewStoreError(op, "link", l.ID, "failed to encode link", ErrInvalidData)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, linkKey(l.ID), data, 0)
		pipe.ZAdd(ctx, profileLinksKey(l.ProfileID), &redis.Z{Score: float64(l.SortOrder), Member: l.ID})
		return nil
	})
	if err != nil {
		return NewStoreError(op, "link", l.ID, err.Error(), err)
	}
	return nil
}

// CreateLink stores a new link block
func (s *RedisStore) CreateLink(ctx context.Context, l *model.LinkBlock) error {
	return s.putLink(ctx, "CreateLink", l)
}

// GetLink returns a link block, soft-deleted ones included
func (s *RedisStore) GetLink(ctx context.Context, id string) (*model.LinkBlock, error) {
	return s.getLink(ctx, "GetLink", id)
}

// UpdateLink overwrites a link block
func (s *RedisStore) UpdateLink(ctx context.Context, l *model.LinkBlock) error {
	if _, err := s.getLink(ctx, "UpdateLink", l.ID); err != nil {
		return err
	}
	return s.putLink(ctx, "UpdateLink", l)
}

// DeleteLink deactivates a link and stamps its deletion time
func (s *RedisStore) DeleteLink(ctx context.Context, id string, at time.Time) error {
	l, err := s.getLink(ctx, "DeleteLink", id)
	if err != nil {
		return err
	}
	if l.DeletedAt != nil {
		return NewStoreError("DeleteLink", "link", id, "link already deleted", ErrNotFound)
	}

	deletedAt := at
	l.IsActive = false
	l.DeletedAt = &deletedAt
	l.UpdatedAt = at
	return s.putLink(ctx, "DeleteLink", l)
}

// profileLinks loads every link indexed under a profile, in index order
func (s *RedisStore) profileLinks(ctx context.Context, op, profileID string) ([]*model.LinkBlock, error) {
	ids, err := s.rdb.ZRange(ctx, profileLinksKey(profileID), 0, -1).Result()
	if err != nil {
		return nil, NewStoreError(op, "link", profileID, err.Error(), err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = linkKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, NewStoreError(op, "link", profileID, err.Error(), err)
	}

	links := make([]*model.LinkBlock, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var l model.LinkBlock
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			log.Error().Err(err).Str("link_id", ids[i]).Msg("Failed to decode link")
			continue
		}
		links = append(links, &l)
	}
	return links, nil
}

// ListLinks returns a profile's links ordered by sortOrder, then createdAt
func (s *RedisStore) ListLinks(ctx context.Context, profileID string, filter model.LinkFilter) ([]*model.LinkBlock, error) {
	all, err := s.profileLinks(ctx, "ListLinks", profileID)
	if err != nil {
		return nil, err
	}

	links := make([]*model.LinkBlock, 0, len(all))
	for _, l := range all {
		if !filter.IncludeHidden && l.Privacy == model.LinkPrivacyHidden {
			continue
		}
		if !filter.IncludeInactive && !l.IsActive {
			continue
		}
		links = append(links, l)
	}
	SortLinks(links)
	return links, nil
}

// DeactivateProfileLinks cascades a profile soft delete to its active links
func (s *RedisStore) DeactivateProfileLinks(ctx context.Context, profileID string, at time.Time) (int64, error) {
	all, err := s.profileLinks(ctx, "DeactivateProfileLinks", profileID)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, l := range all {
		if !l.IsActive {
			continue
		}
		deletedAt := at
		l.IsActive = false
		l.DeletedAt = &deletedAt
		l.UpdatedAt = at
		if err := s.putLink(ctx, "DeactivateProfileLinks", l); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ReactivateProfileLinks undoes the cascade that ran at deletedAt. Links the
// owner deleted or deactivated before that keep their state.
func (s *RedisStore) ReactivateProfileLinks(ctx context.Context, profileID string, deletedAt time.Time) (int64, error) {
	all, err := s.profileLinks(ctx, "ReactivateProfileLinks", profileID)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, l := range all {
		if l.DeletedAt == nil || !l.DeletedAt.Equal(deletedAt) {
			continue
		}
		l.IsActive = true
		l.DeletedAt = nil
		l.UpdatedAt = time.Now().UTC()
		if err := s.putLink(ctx, "ReactivateProfileLinks", l); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SortLinks orders links by sortOrder, then createdAt, then id
func SortLinks(links []*model.LinkBlock) {
	sort.SliceStable(links, func(i, j int) bool {
		a, b := links[i], links[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
