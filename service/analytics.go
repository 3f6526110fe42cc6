package service

import (
	"context"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"github.com/rs/zerolog/log"
)

const (
	defaultRetentionDays = 90
	defaultRecentLimit   = 50
)

// Analytics serves owner analytics reads and the retention sweep
type Analytics struct {
	store       store.Store
	profiles    *Profiles
	retention   time.Duration
	recentLimit int
	now         func() time.Time
}

// NewAnalytics creates the analytics service. Events older than retentionDays are swept.
func NewAnalytics(st store.Store, profiles *Profiles, retentionDays, recentLimit int) *Analytics {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}
	return &Analytics{
		store:       st,
		profiles:    profiles,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		recentLimit: recentLimit,
		now:         time.Now,
	}
}

// RetentionDays is the default and maximum window of Summary
func (s *Analytics) RetentionDays() int {
	return int(s.retention / (24 * time.Hour))
}

// Summary returns counts and recent events of a profile, or of one of its
// links when linkID is set, over the last days days
func (s *Analytics) Summary(ctx context.Context, profileID, token, linkID string, days int) (*model.LinkAnalytics, error) {
	if days == 0 {
		days = s.RetentionDays()
	}
	if days < 0 || days > s.RetentionDays() {
		return nil, utils.NewFieldError("days", ErrValidation)
	}

	if _, err := s.profiles.Authorize(ctx, profileID, token); err != nil {
		return nil, err
	}

	var links []*model.LinkBlock
	if linkID != "" {
		l, err := s.store.GetLink(ctx, linkID)
		if err != nil {
			return nil, err
		}
		if l.ProfileID != profileID {
			return nil, store.NewStoreError("analytics", "link", linkID, "", store.ErrNotFound)
		}
	} else {
		var err error
		links, err = s.store.ListLinks(ctx, profileID, model.LinkFilter{IncludeHidden: true, IncludeInactive: true})
		if err != nil {
			return nil, err
		}
	}

	until := s.now().UTC()
	since := until.Add(-time.Duration(days) * 24 * time.Hour)
	q := model.AnalyticsQuery{ProfileID: profileID, LinkID: linkID, Since: since, Until: until}

	out := &model.LinkAnalytics{ProfileID: profileID, LinkID: linkID, Since: since, Until: until}

	var err error
	if out.TotalClicks, err = s.store.CountClicks(ctx, q); err != nil {
		return nil, err
	}
	if out.RecentClicks, err = s.store.RecentClicks(ctx, q, s.recentLimit); err != nil {
		return nil, err
	}
	if out.RecentClicks == nil {
		out.RecentClicks = []model.ClickEvent{}
	}

	if linkID != "" {
		return out, nil
	}

	if out.TotalViews, err = s.store.CountViews(ctx, q); err != nil {
		return nil, err
	}
	if out.RecentViews, err = s.store.RecentViews(ctx, q, s.recentLimit); err != nil {
		return nil, err
	}
	for _, l := range links {
		lq := q
		lq.LinkID = l.ID
		n, err := s.store.CountClicks(ctx, lq)
		if err != nil {
			return nil, err
		}
		out.LinkClicks = append(out.LinkClicks, model.LinkCount{LinkID: l.ID, Title: l.Title, Clicks: n})
	}
	return out, nil
}

// Cleanup removes every event older than the retention window
func (s *Analytics) Cleanup(ctx context.Context) (*model.PurgeResult, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("Analytics retention sweep finished")
	return &model.PurgeResult{Purged: n, Cutoff: cutoff}, nil
}
