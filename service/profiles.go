// Package service holds the profile, link and analytics rules that sit
// between the HTTP handlers and the store: validation, owner-token checks,
// the create-retry loop and cache invalidation after every write.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hatefsystems/search-engine-core-sub000/cache"
	"github.com/hatefsystems/search-engine-core-sub000/config"
	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthorized  = errors.New("missing or invalid owner token")
	ErrSlugUnchanged = errors.New("new slug equals the current slug")
	ErrValidation    = errors.New("validation failed")
)

const (
	defaultCreateAttempts = 5
	defaultListLimit      = 20
	defaultListMaxLimit   = 100
)

// Options tunes the profile rules
type Options struct {
	SlugAttempts     int           // Bound for -2, -3, ... suffixes
	CreateAttempts   int           // Collision resolutions tried when inserts lose a race
	SuggestionsCount int           // Alternatives offered for a taken slug
	OwnerTokenCost   int           // bcrypt cost of owner token digests
	PurgeAfter       time.Duration // Age of soft-deleted profiles released by purge
	ListMaxLimit     int
	BaseURL          string // Public origin, no trailing slash
}

// OptionsFromConfig maps the application config onto service options
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		SlugAttempts:     cfg.Slugs.MaxAttempts,
		CreateAttempts:   cfg.Slugs.CreateAttempts,
		SuggestionsCount: cfg.Slugs.SuggestionsCount,
		OwnerTokenCost:   cfg.Profiles.OwnerTokenCost,
		PurgeAfter:       time.Duration(cfg.Profiles.PurgeAfterDays) * 24 * time.Hour,
		ListMaxLimit:     cfg.Profiles.ListMaxLimit,
		BaseURL:          cfg.PublicBaseURL(),
	}
}

// Profiles applies the profile rules on top of a store and the two caches
type Profiles struct {
	store store.Store
	slugs *cache.SlugCache
	docs  *cache.ProfileCache
	opts  Options
	now   func() time.Time

	// fillMu orders cache fills against invalidations. epoch counts
	// invalidations, so a read that started before one never fills.
	fillMu sync.Mutex
	epoch  uint64
}

// NewProfiles creates the profile service. docs may be nil.
func NewProfiles(st store.Store, slugs *cache.SlugCache, docs *cache.ProfileCache, opts Options) *Profiles {
	if slugs == nil {
		slugs = cache.NewSlugCache(0, 0, 0)
	}
	if opts.CreateAttempts <= 0 {
		opts.CreateAttempts = defaultCreateAttempts
	}
	if opts.ListMaxLimit <= 0 {
		opts.ListMaxLimit = defaultListMaxLimit
	}
	return &Profiles{store: st, slugs: slugs, docs: docs, opts: opts, now: time.Now}
}

func (s *Profiles) clock() time.Time {
	return s.now().UTC()
}

// commit runs a store write and, only once it succeeded, drops every cache
// entry it may have made stale
func (s *Profiles) commit(id string, slugs []string, write func() error) error {
	if err := write(); err != nil {
		return err
	}
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.epoch++
	for _, slug := range slugs {
		s.slugs.Remove(slug)
	}
	s.docs.Delete(id)
	return nil
}

// readEpoch is taken before a store read whose result may fill the caches
func (s *Profiles) readEpoch() uint64 {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.epoch
}

// fill runs populate unless an invalidation landed since epoch was read
func (s *Profiles) fill(epoch uint64, populate func()) {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if s.epoch == epoch {
		populate()
	}
}

// hasBody reports whether a request carried a body other than null
func hasBody(body json.RawMessage) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// validateBody accepts an absent body or a JSON object
func validateBody(body json.RawMessage) error {
	if !hasBody(body) {
		return nil
	}
	trimmed := bytes.TrimSpace(body)
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return utils.NewFieldError("body", ErrValidation)
	}
	return nil
}

// normalizeSlug canonicalizes and validates a client-supplied slug
func normalizeSlug(raw string) (string, error) {
	slug, err := utils.NormalizeSlugInput(raw)
	if err != nil {
		return "", utils.NewFieldError("slug", err)
	}
	if err := utils.ValidateSlug(slug); err != nil {
		return "", utils.NewFieldError("slug", err)
	}
	return slug, nil
}

type createState int

const (
	stateResolve createState = iota // pick the first free slug
	stateInsert                     // try to claim it
	stateDone
)

// Create persists a new profile and returns its owner token, the only time it is revealed.
// A derived slug is re-resolved when the insert loses a race; an explicit slug is not.
func (s *Profiles) Create(ctx context.Context, req model.CreateProfileRequest) (*model.CreateProfileResponse, error) {
	if req.Type == "" {
		req.Type = model.ProfileTypePerson
	}
	if !req.Type.Valid() {
		return nil, utils.NewFieldError("type", ErrValidation)
	}
	if err := utils.ValidateDisplayName(req.DisplayName); err != nil {
		return nil, err
	}
	if err := validateBody(req.Body); err != nil {
		return nil, err
	}

	explicit := strings.TrimSpace(req.Slug) != ""
	base := utils.GenerateSlug(req.DisplayName)
	if explicit {
		slug, err := normalizeSlug(req.Slug)
		if err != nil {
			return nil, err
		}
		base = slug
	}

	token, err := utils.GenerateOwnerToken()
	if err != nil {
		return nil, err
	}
	digest, err := utils.HashOwnerToken(token, s.opts.OwnerTokenCost)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	p := &model.Profile{
		ID:             uuid.NewString(),
		Type:           req.Type,
		Slug:           base,
		PreviousSlugs:  []string{},
		DisplayName:    strings.TrimSpace(req.DisplayName),
		CreatedAt:      now,
		UpdatedAt:      now,
		OwnerTokenHash: digest,
	}

	if hasBody(req.Body) {
		p.Body = req.Body
	}

	state := stateInsert
	if !explicit {
		state = stateResolve
	}
	attempts := 0
	for state != stateDone {
		switch state {
		case stateResolve:
			attempts++
			if attempts > s.opts.CreateAttempts {
				return nil, store.NewStoreError("create", "profile", p.ID, "slug resolution kept losing races", store.ErrSlugConflict)
			}
			slug, err := utils.ResolveSlugConflict(ctx, base, s.store.IsSlugTaken, s.opts.SlugAttempts)
			if err != nil {
				return nil, err
			}
			p.Slug = slug
			state = stateInsert

		case stateInsert:
			err := s.commit(p.ID, []string{p.Slug}, func() error {
				return s.store.CreateProfile(ctx, p)
			})
			switch {
			case err == nil:
				state = stateDone
			case errors.Is(err, store.ErrSlugConflict) && !explicit:
				log.Warn().
					Str("slug", p.Slug).
					Int("attempt", attempts).
					Msg("Slug claimed concurrently, resolving again")
				state = stateResolve
			default:
				return nil, err
			}
		}
	}

	log.Info().
		Str("profile_id", p.ID).
		Str("slug", p.Slug).
		Str("type", string(p.Type)).
		Msg("Profile created")

	return &model.CreateProfileResponse{
		Profile:    p,
		OwnerToken: token,
		PublicURL:  s.PublicURL(p.Slug),
		QRCodeURL:  s.opts.BaseURL + "/api/profiles/" + p.ID + "/qr",
	}, nil
}

// PublicURL is the absolute address of a slug
func (s *Profiles) PublicURL(slug string) string {
	return s.opts.BaseURL + "/" + slug
}

// authorize loads a profile and checks the presented owner token. A missing
// token fails before any lookup; a wrong one fails after it.
func (s *Profiles) authorize(ctx context.Context, id, token string, includeDeleted bool) (*model.Profile, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	var (
		p   *model.Profile
		err error
	)
	if includeDeleted {
		p, err = s.store.GetProfileAny(ctx, id)
	} else {
		p, err = s.store.GetProfile(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if !utils.CheckOwnerToken(p.OwnerTokenHash, token) {
		log.Warn().Str("profile_id", id).Msg("Owner token mismatch")
		return nil, ErrUnauthorized
	}
	return p, nil
}

// Authorize checks the owner token of a live profile
func (s *Profiles) Authorize(ctx context.Context, id, token string) (*model.Profile, error) {
	return s.authorize(ctx, id, token, false)
}

// Get returns a live profile to its owner
func (s *Profiles) Get(ctx context.Context, id, token string) (*model.Profile, error) {
	return s.authorize(ctx, id, token, false)
}

// Update changes display name, body and, when it differs, the slug
func (s *Profiles) Update(ctx context.Context, id, token string, req model.UpdateProfileRequest) (*model.Profile, error) {
	p, err := s.authorize(ctx, id, token, false)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		if err := utils.ValidateDisplayName(*req.DisplayName); err != nil {
			return nil, err
		}
	}
	if err := validateBody(req.Body); err != nil {
		return nil, err
	}

	var newSlug string
	if req.Slug != nil {
		if newSlug, err = normalizeSlug(*req.Slug); err != nil {
			return nil, err
		}
	}

	if newSlug != "" && newSlug != p.Slug {
		if p, err = s.changeSlug(ctx, p, newSlug); err != nil {
			return nil, err
		}
	}

	if req.DisplayName == nil && !hasBody(req.Body) {
		return p, nil
	}
	if req.DisplayName != nil {
		p.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if hasBody(req.Body) {
		p.Body = req.Body
	}
	p.UpdatedAt = s.clock()

	if err := s.commit(p.ID, nil, func() error {
		return s.store.UpdateProfile(ctx, p)
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// ChangeSlug moves a profile to a new slug; the old one keeps redirecting
func (s *Profiles) ChangeSlug(ctx context.Context, id, token, rawSlug string) (*model.Profile, error) {
	p, err := s.authorize(ctx, id, token, false)
	if err != nil {
		return nil, err
	}
	newSlug, err := normalizeSlug(rawSlug)
	if err != nil {
		return nil, err
	}
	if newSlug == p.Slug {
		return nil, ErrSlugUnchanged
	}
	return s.changeSlug(ctx, p, newSlug)
}

func (s *Profiles) changeSlug(ctx context.Context, p *model.Profile, newSlug string) (*model.Profile, error) {
	oldSlug := p.Slug
	var updated *model.Profile
	err := s.commit(p.ID, []string{oldSlug, newSlug}, func() error {
		var err error
		updated, err = s.store.UpdateSlug(ctx, p.ID, newSlug, s.clock())
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("profile_id", p.ID).
		Str("old_slug", oldSlug).
		Str("new_slug", newSlug).
		Msg("Profile slug changed")
	return updated, nil
}

// Delete soft-deletes a profile and deactivates its links. The slugs stay claimed.
func (s *Profiles) Delete(ctx context.Context, id, token string) error {
	p, err := s.authorize(ctx, id, token, false)
	if err != nil {
		return err
	}

	at := s.clock()
	err = s.commit(p.ID, []string{p.Slug}, func() error {
		if _, err := s.store.SoftDeleteProfile(ctx, p.ID, at); err != nil {
			return err
		}
		n, err := s.store.DeactivateProfileLinks(ctx, p.ID, at)
		if err != nil {
			return err
		}
		log.Info().Str("profile_id", p.ID).Int64("links", n).Msg("Profile soft-deleted")
		return nil
	})
	return err
}

// Restore undoes a soft delete together with the link cascade it caused
func (s *Profiles) Restore(ctx context.Context, id, token string) (*model.Profile, error) {
	p, err := s.authorize(ctx, id, token, true)
	if err != nil {
		return nil, err
	}
	if !p.IsDeleted() {
		return p, nil
	}

	deletedAt := *p.DeletedAt
	var restored *model.Profile
	err = s.commit(p.ID, []string{p.Slug}, func() error {
		var err error
		if restored, err = s.store.RestoreProfile(ctx, p.ID); err != nil {
			return err
		}
		n, err := s.store.ReactivateProfileLinks(ctx, p.ID, deletedAt)
		if err != nil {
			return err
		}
		log.Info().Str("profile_id", p.ID).Int64("links", n).Msg("Profile restored")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// PurgeDeleted hard-deletes profiles soft-deleted longer ago than PurgeAfter, releasing their slugs
func (s *Profiles) PurgeDeleted(ctx context.Context) (*model.PurgeResult, error) {
	cutoff := s.clock().Add(-s.opts.PurgeAfter)
	n, err := s.store.PurgeDeletedProfiles(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		// Released slugs may be claimed by anyone from now on
		s.fillMu.Lock()
		s.epoch++
		s.slugs.Clear()
		s.fillMu.Unlock()
	}
	return &model.PurgeResult{Purged: n, Cutoff: cutoff}, nil
}

// List returns a page of live profiles, newest first
func (s *Profiles) List(ctx context.Context, offset, limit int) (*model.ProfileList, error) {
	if offset < 0 {
		return nil, utils.NewFieldError("offset", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > s.opts.ListMaxLimit {
		limit = s.opts.ListMaxLimit
	}

	profiles, total, err := s.store.ListProfiles(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []*model.Profile{}
	}
	return &model.ProfileList{Profiles: profiles, Offset: offset, Limit: limit, Total: total}, nil
}

// CheckSlug reports whether a slug can be claimed. Reserved slugs are
// reported unavailable; malformed ones are a validation error.
func (s *Profiles) CheckSlug(ctx context.Context, raw string) (*model.SlugAvailability, error) {
	slug, err := utils.NormalizeSlugInput(raw)
	if err != nil {
		return nil, utils.NewFieldError("slug", err)
	}
	if err := utils.ValidateSlugGrammar(slug); err != nil {
		return nil, utils.NewFieldError("slug", err)
	}

	available := !utils.IsReservedSlug(slug)
	if available {
		taken, err := s.store.IsSlugTaken(ctx, slug)
		if err != nil {
			return nil, err
		}
		available = !taken
	}

	res := &model.SlugAvailability{Slug: slug, Available: available}
	if !available {
		res.Suggestions = s.Suggest(ctx, slug)
	}
	return res, nil
}

// Suggest returns free alternatives to a taken slug
func (s *Profiles) Suggest(ctx context.Context, slug string) []string {
	return utils.GenerateSlugSuggestions(ctx, slug, s.store.IsSlugTaken, s.opts.SuggestionsCount)
}

// Resolution is the outcome of resolving a public slug: either a profile or
// the current slug a previous one redirects to
type Resolution struct {
	Profile      *model.Profile
	RedirectSlug string
}

// profileByID reads through the document cache
func (s *Profiles) profileByID(ctx context.Context, id string) (*model.Profile, error) {
	if p, ok := s.docs.Get(id); ok {
		return p, nil
	}
	epoch := s.readEpoch()
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(epoch, func() { s.docs.Set(p) })
	return p, nil
}

// Resolve maps a public slug to a live profile: slug cache, then current
// slugs, then previous slugs (which redirect)
func (s *Profiles) Resolve(ctx context.Context, slug string) (*Resolution, error) {
	if id, ok := s.slugs.Get(slug); ok {
		p, err := s.profileByID(ctx, id)
		switch {
		case err == nil && p.Slug == slug:
			return &Resolution{Profile: p}, nil
		case err != nil && !store.IsNotFound(err):
			return nil, err
		}
		s.slugs.Remove(slug)
	}

	epoch := s.readEpoch()
	p, err := s.store.FindBySlug(ctx, slug)
	if err == nil {
		s.fill(epoch, func() {
			s.slugs.Put(slug, p.ID)
			s.docs.Set(p)
		})
		return &Resolution{Profile: p}, nil
	}
	if !store.IsNotFound(err) {
		return nil, err
	}

	p, err = s.store.FindByPreviousSlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &Resolution{RedirectSlug: p.Slug}, nil
}

// PublicProfile is the public shape of p with its PUBLIC resolvable links
func (s *Profiles) PublicProfile(ctx context.Context, p *model.Profile) (*model.PublicProfile, error) {
	links, err := s.store.ListLinks(ctx, p.ID, model.LinkFilter{})
	if err != nil {
		return nil, err
	}

	out := &model.PublicProfile{
		ID:          p.ID,
		Type:        p.Type,
		Slug:        p.Slug,
		DisplayName: p.DisplayName,
		Body:        p.Body,
		Links:       []model.PublicLink{},
	}
	for _, l := range links {
		if l.Privacy != model.LinkPrivacyPublic || !l.Resolvable() {
			continue
		}
		out.Links = append(out.Links, model.PublicLink{
			ID:          l.ID,
			Title:       l.Title,
			Description: l.Description,
			IconURL:     l.IconURL,
			Tags:        l.Tags,
			Href:        "/l/" + l.ID,
		})
	}
	return out, nil
}

// CacheStats exposes both cache layers for the metrics endpoint
func (s *Profiles) CacheStats() (cache.SlugCacheStats, cache.MetricsSnapshot) {
	return s.slugs.Stats(), s.docs.GetMetricsSnapshot()
}
