package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/rs/zerolog/log"
)

// RecordClick adds a click to the link and profile sorted sets
func (s *RedisStore) RecordClick(ctx context.Context, e *model.ClickEvent) error {
	e.ClickedAt = e.ClickedAt.Truncate(time.Millisecond)

	data, err := json.Marshal(e)
	if err != nil {
		return NewStoreError("RecordClick", "click", e.ID, "failed to encode event", ErrInvalidData)
	}
	member := &redis.Z{Score: float64(EventMillis(e.ClickedAt)), Member: data}
	byLink, byProfile := clickLinkKey(e.LinkID), clickProfileKey(e.ProfileID)

	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, byLink, member)
		pipe.ZAdd(ctx, byProfile, member)
		pipe.SAdd(ctx, clickKeysRegistry, byLink, byProfile)
		return nil
	})
	if err != nil {
		return NewStoreError("RecordClick", "click", e.ID, err.Error(), err)
	}
	return nil
}

// RecordView adds a view to the profile's sorted set
func (s *RedisStore) RecordView(ctx context.Context, e *model.ViewEvent) error {
	e.ViewedAt = e.ViewedAt.Truncate(time.Millisecond)

	data, err := json.Marshal(e)
	if err != nil {
		return NewStoreError("RecordView", "view", e.ID, "failed to encode event", ErrInvalidData)
	}
	key := viewProfileKey(e.ProfileID)

	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, &redis.Z{Score: float64(EventMillis(e.ViewedAt)), Member: data})
		pipe.SAdd(ctx, viewKeysRegistry, key)
		return nil
	})
	if err != nil {
		return NewStoreError("RecordView", "view", e.ID, err.Error(), err)
	}
	return nil
}

// scoreRange converts a query window to ZSET bounds: since inclusive, until exclusive
func scoreRange(q model.AnalyticsQuery) (lo, hi string) {
	lo, hi = "-inf", "+inf"
	if !q.Since.IsZero() {
		lo = strconv.FormatInt(CutoffMillis(q.Since), 10)
	}
	if !q.Until.IsZero() {
		hi = "(" + strconv.FormatInt(CutoffMillis(q.Until), 10)
	}
	return lo, hi
}

func clickQueryKey(q model.AnalyticsQuery) string {
	if q.LinkID != "" {
		return clickLinkKey(q.LinkID)
	}
	return clickProfileKey(q.ProfileID)
}

// CountClicks counts clicks for a link or a profile within the window
func (s *RedisStore) CountClicks(ctx context.Context, q model.AnalyticsQuery) (int64, error) {
	lo, hi := scoreRange(q)
	n, err := s.rdb.ZCount(ctx, clickQueryKey(q), lo, hi).Result()
	if err != nil {
		return 0, NewStoreError("CountClicks", "click", q.ProfileID, err.Error(), err)
	}
	return n, nil
}

// CountViews counts profile views within the window
func (s *RedisStore) CountViews(ctx context.Context, q model.AnalyticsQuery) (int64, error) {
	lo, hi := scoreRange(q)
	n, err := s.rdb.ZCount(ctx, viewProfileKey(q.ProfileID), lo, hi).Result()
	if err != nil {
		return 0, NewStoreError("CountViews", "view", q.ProfileID, err.Error(), err)
	}
	return n, nil
}

func (s *RedisStore) recentMembers(ctx context.Context, key string, q model.AnalyticsQuery, limit int) ([]string, error) {
	lo, hi := scoreRange(q)
	return s.rdb.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   lo,
		Max:   hi,
		Count: int64(limit),
	}).Result()
}

// RecentClicks returns up to limit clicks, newest first
func (s *RedisStore) RecentClicks(ctx context.Context, q model.AnalyticsQuery, limit int) ([]model.ClickEvent, error) {
	events := []model.ClickEvent{}
	if limit <= 0 {
		return events, nil
	}

	members, err := s.recentMembers(ctx, clickQueryKey(q), q, limit)
	if err != nil {
		return nil, NewStoreError("RecentClicks", "click", q.ProfileID, err.Error(), err)
	}
	for _, m := range members {
		var e model.ClickEvent
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			log.Error().Err(err).Msg("Failed to decode click event")
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// RecentViews returns up to limit views, newest first
func (s *RedisStore) RecentViews(ctx context.Context, q model.AnalyticsQuery, limit int) ([]model.ViewEvent, error) {
	events := []model.ViewEvent{}
	if limit <= 0 {
		return events, nil
	}

	members, err := s.recentMembers(ctx, viewProfileKey(q.ProfileID), q, limit)
	if err != nil {
		return nil, NewStoreError("RecentViews", "view", q.ProfileID, err.Error(), err)
	}
	for _, m := range members {
		var e model.ViewEvent
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			log.Error().Err(err).Msg("Failed to decode view event")
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// PurgeBefore trims every registered analytics set. The returned count is of
// events, so a click removed from both its link and profile sets counts once.
func (s *RedisStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	hi := "(" + strconv.FormatInt(CutoffMillis(cutoff), 10)

	var purged int64
	for _, registry := range []string{clickKeysRegistry, viewKeysRegistry} {
		keys, err := s.rdb.SMembers(ctx, registry).Result()
		if err != nil {
			return purged, NewStoreError("PurgeBefore", "analytics", registry, err.Error(), err)
		}

		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return purged, err
			}
			n, err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", hi).Result()
			if err != nil {
				return purged, NewStoreError("PurgeBefore", "analytics", key, err.Error(), err)
			}
			if !strings.HasPrefix(key, clickProfilePrefix) {
				purged += n
			}
		}
	}

	log.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("Analytics retention sweep finished")
	return purged, nil
}
