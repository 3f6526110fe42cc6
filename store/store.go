// Package store defines persistence for profiles, link blocks and analytics
// events, with a Redis implementation. The SQLite implementation lives in
// store/sqlite and satisfies the same interfaces.
package store

import (
	"context"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/model"
)

// ProfileStore persists profiles and their slug claims.
//
// A slug is claimed while any profile, live or soft-deleted, holds it as its
// current or a previous slug. Only PurgeDeletedProfiles releases claims.
type ProfileStore interface {
	// CreateProfile inserts p and claims p.Slug. Returns ErrSlugConflict when the slug is claimed.
	CreateProfile(ctx context.Context, p *model.Profile) error

	// GetProfile returns a live profile by id
	GetProfile(ctx context.Context, id string) (*model.Profile, error)

	// GetProfileAny returns a profile by id, soft-deleted ones included
	GetProfileAny(ctx context.Context, id string) (*model.Profile, error)

	// FindBySlug returns the live profile whose current slug is slug
	FindBySlug(ctx context.Context, slug string) (*model.Profile, error)

	// FindByPreviousSlug returns the live profile that used to be reachable at slug
	FindByPreviousSlug(ctx context.Context, slug string) (*model.Profile, error)

	// IsSlugTaken reports whether slug is claimed by any profile
	IsSlugTaken(ctx context.Context, slug string) (bool, error)

	// UpdateProfile persists the non-slug fields of p (display name, body, updatedAt)
	UpdateProfile(ctx context.Context, p *model.Profile) error

	// UpdateSlug moves the profile to newSlug and keeps the old one as a previous slug.
	// Returns ErrSlugConflict when newSlug is claimed by another profile.
	UpdateSlug(ctx context.Context, id, newSlug string, at time.Time) (*model.Profile, error)

	// SoftDeleteProfile marks a live profile deleted at the given time
	SoftDeleteProfile(ctx context.Context, id string, at time.Time) (*model.Profile, error)

	// RestoreProfile clears the deletion marker. Restoring a live profile is a no-op.
	RestoreProfile(ctx context.Context, id string) (*model.Profile, error)

	// PurgeDeletedProfiles hard-deletes profiles soft-deleted before the cutoff,
	// their links, and releases their slug claims
	PurgeDeletedProfiles(ctx context.Context, before time.Time) (int64, error)

	// ListProfiles returns live profiles, newest first, and the live total
	ListProfiles(ctx context.Context, offset, limit int) ([]*model.Profile, int64, error)
}

// LinkStore persists link blocks
type LinkStore interface {
	CreateLink(ctx context.Context, l *model.LinkBlock) error
	GetLink(ctx context.Context, id string) (*model.LinkBlock, error)
	UpdateLink(ctx context.Context, l *model.LinkBlock) error

	// DeleteLink soft-deletes a link: inactive, with deletedAt set
	DeleteLink(ctx context.Context, id string, at time.Time) error

	// ListLinks returns the links of a profile ordered by sortOrder, then createdAt
	ListLinks(ctx context.Context, profileID string, filter model.LinkFilter) ([]*model.LinkBlock, error)

	// DeactivateProfileLinks cascades a profile soft delete to its active links
	DeactivateProfileLinks(ctx context.Context, profileID string, at time.Time) (int64, error)

	// ReactivateProfileLinks re-activates exactly the links deactivated by the
	// cascade that ran at deletedAt
	ReactivateProfileLinks(ctx context.Context, profileID string, deletedAt time.Time) (int64, error)
}

// AnalyticsStore persists privacy-filtered click and view events
type AnalyticsStore interface {
	RecordClick(ctx context.Context, e *model.ClickEvent) error
	RecordView(ctx context.Context, e *model.ViewEvent) error
	CountClicks(ctx context.Context, q model.AnalyticsQuery) (int64, error)
	CountViews(ctx context.Context, q model.AnalyticsQuery) (int64, error)

	// RecentClicks returns up to limit events, newest first
	RecentClicks(ctx context.Context, q model.AnalyticsQuery, limit int) ([]model.ClickEvent, error)
	RecentViews(ctx context.Context, q model.AnalyticsQuery, limit int) ([]model.ViewEvent, error)

	// PurgeBefore removes exactly the events that happened before cutoff. It is idempotent.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the full persistence surface used by the service and handlers
type Store interface {
	ProfileStore
	LinkStore
	AnalyticsStore

	// Ping checks that the backing database is reachable
	Ping(ctx context.Context) error
}

// EventMillis truncates an event time to the millisecond resolution both
// backends index on
func EventMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// CutoffMillis converts an exclusive upper bound to milliseconds so that an
// event stored at EventMillis(e) is before the bound iff EventMillis(e) < CutoffMillis(t)
func CutoffMillis(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return ms
}
