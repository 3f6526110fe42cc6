package service

import (
	"context"
	"strings"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"github.com/rs/zerolog/log"
)

// Links applies the link block rules. Every owner operation goes through the
// profile's owner token, and links of a soft-deleted profile are not found.
type Links struct {
	store    store.Store
	profiles *Profiles
	checker  URLChecker
	now      func() time.Time
}

// URLChecker refuses link targets that must not be redirected to
type URLChecker interface {
	Check(rawURL string) error
}

// NewLinks creates the link service
func NewLinks(st store.Store, profiles *Profiles) *Links {
	return &Links{store: st, profiles: profiles, now: time.Now}
}

// WithChecker screens link targets on create and update
func (s *Links) WithChecker(c URLChecker) *Links {
	s.checker = c
	return s
}

// validate runs the field rules, then the target screen
func (s *Links) validate(l *model.LinkBlock) error {
	if err := utils.ValidateLink(l); err != nil {
		return err
	}
	if s.checker != nil {
		if err := s.checker.Check(l.URL); err != nil {
			return utils.NewFieldError("url", err)
		}
	}
	return nil
}

// ownedLink returns a live link of a live profile the caller owns
func (s *Links) ownedLink(ctx context.Context, profileID, token, linkID string) (*model.LinkBlock, error) {
	if _, err := s.profiles.Authorize(ctx, profileID, token); err != nil {
		return nil, err
	}
	l, err := s.store.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if l.ProfileID != profileID || l.DeletedAt != nil {
		return nil, store.NewStoreError("get", "link", linkID, "", store.ErrNotFound)
	}
	return l, nil
}

// Create adds a link block to a profile. Privacy defaults to PUBLIC.
func (s *Links) Create(ctx context.Context, profileID, token string, req model.CreateLinkRequest) (*model.LinkBlock, error) {
	if _, err := s.profiles.Authorize(ctx, profileID, token); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	l := &model.LinkBlock{
		ID:          utils.NewULID(now),
		ProfileID:   profileID,
		URL:         strings.TrimSpace(req.URL),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		IconURL:     strings.TrimSpace(req.IconURL),
		Tags:        req.Tags,
		SortOrder:   req.SortOrder,
		Privacy:     req.Privacy,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if l.Privacy == "" {
		l.Privacy = model.LinkPrivacyPublic
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	if err := s.validate(l); err != nil {
		return nil, err
	}

	if err := s.store.CreateLink(ctx, l); err != nil {
		return nil, err
	}

	log.Info().
		Str("profile_id", profileID).
		Str("link_id", l.ID).
		Str("privacy", string(l.Privacy)).
		Msg("Link created")
	return l, nil
}

// Get returns one link to its owner
func (s *Links) Get(ctx context.Context, profileID, token, linkID string) (*model.LinkBlock, error) {
	return s.ownedLink(ctx, profileID, token, linkID)
}

// Update applies the non-nil fields of req
func (s *Links) Update(ctx context.Context, profileID, token, linkID string, req model.UpdateLinkRequest) (*model.LinkBlock, error) {
	l, err := s.ownedLink(ctx, profileID, token, linkID)
	if err != nil {
		return nil, err
	}

	if req.URL != nil {
		l.URL = strings.TrimSpace(*req.URL)
	}
	if req.Title != nil {
		l.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		l.Description = *req.Description
	}
	if req.IconURL != nil {
		l.IconURL = strings.TrimSpace(*req.IconURL)
	}
	if req.Tags != nil {
		l.Tags = req.Tags
	}
	if req.SortOrder != nil {
		l.SortOrder = *req.SortOrder
	}
	if req.Privacy != nil {
		l.Privacy = *req.Privacy
	}
	if req.IsActive != nil {
		l.IsActive = *req.IsActive
	}
	if err := s.validate(l); err != nil {
		return nil, err
	}

	l.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateLink(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Delete soft-deletes a link
func (s *Links) Delete(ctx context.Context, profileID, token, linkID string) error {
	l, err := s.ownedLink(ctx, profileID, token, linkID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLink(ctx, l.ID, s.now().UTC()); err != nil {
		return err
	}
	log.Info().Str("profile_id", profileID).Str("link_id", l.ID).Msg("Link deleted")
	return nil
}

// List is the owner listing. Hidden links are included only on request;
// deleted links never are.
func (s *Links) List(ctx context.Context, profileID, token string, includeHidden bool) ([]*model.LinkBlock, error) {
	if _, err := s.profiles.Authorize(ctx, profileID, token); err != nil {
		return nil, err
	}
	links, err := s.store.ListLinks(ctx, profileID, model.LinkFilter{IncludeHidden: includeHidden})
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []*model.LinkBlock{}
	}
	return links, nil
}

// Resolve returns the link /l/{linkId} redirects to. Missing, inactive and
// DISABLED links, and links of a deleted profile, are not found.
func (s *Links) Resolve(ctx context.Context, linkID string) (*model.LinkBlock, error) {
	l, err := s.store.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !l.Resolvable() {
		return nil, store.NewStoreError("resolve", "link", linkID, "", store.ErrNotFound)
	}
	if _, err := s.profiles.profileByID(ctx, l.ProfileID); err != nil {
		return nil, err
	}
	return l, nil
}
