package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/hatefsystems/search-engine-core-sub000/cache"
	"github.com/hatefsystems/search-engine-core-sub000/config"
	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store     *store.RedisStore
	slugs     *cache.SlugCache
	profiles  *Profiles
	links     *Links
	analytics *Analytics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	st := store.NewRedisStore(rdb)
	slugs := cache.NewSlugCache(time.Minute, 100, 10)
	profiles := NewProfiles(st, slugs, nil, Options{
		OwnerTokenCost: bcrypt.MinCost,
		PurgeAfter:     30 * 24 * time.Hour,
		BaseURL:        "https://hatef.ir",
	})
	profiles.now = func() time.Time { return testNow }

	links := NewLinks(st, profiles)
	links.now = func() time.Time { return testNow }

	analytics := NewAnalytics(st, profiles, 90, 10)
	analytics.now = func() time.Time { return testNow }

	return &testEnv{store: st, slugs: slugs, profiles: profiles, links: links, analytics: analytics}
}

func (e *testEnv) create(t *testing.T, name, slug string) *model.CreateProfileResponse {
	t.Helper()
	res, err := e.profiles.Create(context.Background(), model.CreateProfileRequest{
		Type:        model.ProfileTypePerson,
		DisplayName: name,
		Slug:        slug,
		Body:        json.RawMessage(`{"bio":"hi"}`),
	})
	if err != nil {
		t.Fatalf("Create(%q, %q) error = %v", name, slug, err)
	}
	return res
}

func (e *testEnv) addLink(t *testing.T, owner *model.CreateProfileResponse, title string, privacy model.LinkPrivacy, order int) *model.LinkBlock {
	t.Helper()
	l, err := e.links.Create(context.Background(), owner.Profile.ID, owner.OwnerToken, model.CreateLinkRequest{
		URL:       "https://example.com/" + title,
		Title:     title,
		SortOrder: order,
		Privacy:   privacy,
	})
	if err != nil {
		t.Fatalf("links.Create(%q) error = %v", title, err)
	}
	return l
}

func TestCreateDerivedSlugResolvesConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.create(t, "Someone", "john-doe")
	second := env.create(t, "John Doe", "")

	if second.Profile.Slug != "john-doe-2" {
		t.Fatalf("second slug = %q, want john-doe-2", second.Profile.Slug)
	}

	got, err := env.store.FindBySlug(ctx, "john-doe-2")
	if err != nil {
		t.Fatalf("FindBySlug() error = %v", err)
	}
	if got.ID != second.Profile.ID || got.ID == first.Profile.ID {
		t.Errorf("FindBySlug(john-doe-2) = %s, want %s", got.ID, second.Profile.ID)
	}

	if len(second.OwnerToken) != 64 {
		t.Errorf("owner token length = %d, want 64 hex chars", len(second.OwnerToken))
	}
	if second.PublicURL != "https://hatef.ir/john-doe-2" {
		t.Errorf("PublicURL = %q", second.PublicURL)
	}
}

func TestCreateExplicitSlugConflictDoesNotRetry(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "John", "john-doe")

	_, err := env.profiles.Create(context.Background(), model.CreateProfileRequest{DisplayName: "Other", Slug: "John-Doe"})
	if !errors.Is(err, store.ErrSlugConflict) {
		t.Fatalf("Create() error = %v, want ErrSlugConflict", err)
	}
}

func TestReservedSlugsRejectedOnEveryWritePath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Owner", "owner")

	for _, word := range []string{"api", "ADMIN", "Static", "l", "profiles", "about", "api-internal"} {
		t.Run(word, func(t *testing.T) {
			_, err := env.profiles.Create(ctx, model.CreateProfileRequest{DisplayName: "X", Slug: word})
			if !errors.Is(err, utils.ErrSlugReserved) {
				t.Errorf("Create(slug=%q) error = %v, want ErrSlugReserved", word, err)
			}

			_, err = env.profiles.ChangeSlug(ctx, owner.Profile.ID, owner.OwnerToken, word)
			if !errors.Is(err, utils.ErrSlugReserved) {
				t.Errorf("ChangeSlug(%q) error = %v, want ErrSlugReserved", word, err)
			}

			_, err = env.profiles.Update(ctx, owner.Profile.ID, owner.OwnerToken, model.UpdateProfileRequest{Slug: &word})
			if !errors.Is(err, utils.ErrSlugReserved) {
				t.Errorf("Update(slug=%q) error = %v, want ErrSlugReserved", word, err)
			}
		})
	}

	// A name that derives to a reserved word gets a suffix instead
	res := env.create(t, "Admin", "")
	if res.Profile.Slug != "admin-2" {
		t.Errorf("derived slug = %q, want admin-2", res.Profile.Slug)
	}
}

// racingStore loses the first losses inserts as if another request claimed the slug
type racingStore struct {
	store.Store
	losses int
	calls  int
}

func (s *racingStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	s.calls++
	if s.losses > 0 {
		s.losses--
		return store.ErrSlugConflict
	}
	return s.Store.CreateProfile(ctx, p)
}

func TestCreateRetriesLostRaces(t *testing.T) {
	tests := []struct {
		name      string
		losses    int
		wantErr   bool
		wantCalls int
	}{
		{"wins after two losses", 2, false, 3},
		{"gives up after the attempt bound", 5, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			racing := &racingStore{Store: env.store, losses: tt.losses}
			profiles := NewProfiles(racing, nil, nil, Options{CreateAttempts: 3, OwnerTokenCost: bcrypt.MinCost})

			_, err := profiles.Create(context.Background(), model.CreateProfileRequest{DisplayName: "Race Car"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, store.ErrSlugConflict) {
				t.Errorf("Create() error = %v, want ErrSlugConflict", err)
			}
			if racing.calls != tt.wantCalls {
				t.Errorf("insert calls = %d, want %d", racing.calls, tt.wantCalls)
			}
		})
	}
}

func TestOwnerTokenRequired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Owner", "owner")

	if err := env.profiles.Delete(ctx, owner.Profile.ID, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Delete(no token) error = %v, want ErrUnauthorized", err)
	}
	if err := env.profiles.Delete(ctx, owner.Profile.ID, "deadbeef"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Delete(wrong token) error = %v, want ErrUnauthorized", err)
	}
	if err := env.profiles.Delete(ctx, "missing", "deadbeef"); !store.IsNotFound(err) {
		t.Errorf("Delete(unknown id) error = %v, want ErrNotFound", err)
	}

	p, err := env.store.GetProfile(ctx, owner.Profile.ID)
	if err != nil || p.IsDeleted() {
		t.Fatalf("profile changed by unauthorized delete: %+v, %v", p, err)
	}

	if _, err := env.profiles.Get(ctx, owner.Profile.ID, owner.OwnerToken); err != nil {
		t.Errorf("Get(owner token) error = %v", err)
	}
}

func TestChangeSlugRedirectsAndInvalidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Old Name", "old-name")

	// Warm the slug cache with the old name
	res, err := env.profiles.Resolve(ctx, "old-name")
	if err != nil || res.Profile == nil {
		t.Fatalf("Resolve(old-name) = %+v, %v", res, err)
	}
	if _, ok := env.slugs.Get("old-name"); !ok {
		t.Fatal("old-name not cached after resolution")
	}

	updated, err := env.profiles.ChangeSlug(ctx, owner.Profile.ID, owner.OwnerToken, "new-name")
	if err != nil {
		t.Fatalf("ChangeSlug() error = %v", err)
	}
	if updated.Slug != "new-name" || !updated.HasPreviousSlug("old-name") || updated.SlugChangedAt == nil {
		t.Errorf("updated profile = %+v", updated)
	}
	if _, ok := env.slugs.Get("old-name"); ok {
		t.Error("old-name still cached after slug change")
	}

	res, err = env.profiles.Resolve(ctx, "old-name")
	if err != nil {
		t.Fatalf("Resolve(old-name) error = %v", err)
	}
	if res.RedirectSlug != "new-name" {
		t.Errorf("Resolve(old-name).RedirectSlug = %q, want new-name", res.RedirectSlug)
	}

	res, err = env.profiles.Resolve(ctx, "new-name")
	if err != nil || res.Profile == nil || res.Profile.ID != owner.Profile.ID {
		t.Errorf("Resolve(new-name) = %+v, %v", res, err)
	}

	if _, err := env.store.FindBySlug(ctx, "old-name"); !store.IsNotFound(err) {
		t.Errorf("FindBySlug(old-name) error = %v, want ErrNotFound", err)
	}

	if _, err := env.profiles.ChangeSlug(ctx, owner.Profile.ID, owner.OwnerToken, "New-Name"); !errors.Is(err, ErrSlugUnchanged) {
		t.Errorf("ChangeSlug(same) error = %v, want ErrSlugUnchanged", err)
	}
}

// interleavedStore runs during once, after the wrapped FindBySlug has read
// its result but before that result reaches the caller
type interleavedStore struct {
	store.Store
	during func()
}

func (s *interleavedStore) FindBySlug(ctx context.Context, slug string) (*model.Profile, error) {
	p, err := s.Store.FindBySlug(ctx, slug)
	if s.during != nil {
		during := s.during
		s.during = nil
		during()
	}
	return p, err
}

func TestResolveDoesNotCacheReadsOverlappingSlugChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Old Name", "old-name")

	docs, err := cache.New(config.CacheConfig{Enabled: true, MaxSizeMB: 10, CounterSize: 1000, SlugTTLSeconds: 60})
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	t.Cleanup(docs.Close)

	interleaved := &interleavedStore{Store: env.store}
	slugs := cache.NewSlugCache(time.Minute, 100, 10)
	profiles := NewProfiles(interleaved, slugs, docs, Options{OwnerTokenCost: bcrypt.MinCost})
	profiles.now = func() time.Time { return testNow }

	interleaved.during = func() {
		if _, err := profiles.ChangeSlug(ctx, owner.Profile.ID, owner.OwnerToken, "new-name"); err != nil {
			t.Errorf("ChangeSlug() error = %v", err)
		}
	}

	// The read predates the change, so it is served once but not cached
	res, err := profiles.Resolve(ctx, "old-name")
	if err != nil || res.Profile == nil {
		t.Fatalf("Resolve(old-name) = %+v, %v", res, err)
	}
	docs.Wait()

	if _, ok := slugs.Get("old-name"); ok {
		t.Error("old-name cached from a read that overlapped the slug change")
	}
	if p, ok := docs.Get(owner.Profile.ID); ok && p.Slug == "old-name" {
		t.Error("stale profile document cached from a read that overlapped the slug change")
	}

	res, err = profiles.Resolve(ctx, "old-name")
	if err != nil {
		t.Fatalf("Resolve(old-name) error = %v", err)
	}
	if res.RedirectSlug != "new-name" {
		t.Errorf("Resolve(old-name).RedirectSlug = %q, want new-name", res.RedirectSlug)
	}
}

func TestResolveCachesReadsWithoutOverlap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "Quiet", "quiet")

	if _, err := env.profiles.Resolve(ctx, "quiet"); err != nil {
		t.Fatalf("Resolve(quiet) error = %v", err)
	}
	if _, ok := env.slugs.Get("quiet"); !ok {
		t.Error("quiet not cached after an uncontended resolution")
	}
}

func TestChangeSlugToAnotherProfilesPreviousSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.create(t, "A", "alpha")
	b := env.create(t, "B", "beta")

	if _, err := env.profiles.ChangeSlug(ctx, a.Profile.ID, a.OwnerToken, "alpha-2"); err != nil {
		t.Fatalf("ChangeSlug() error = %v", err)
	}
	_, err := env.profiles.ChangeSlug(ctx, b.Profile.ID, b.OwnerToken, "alpha")
	if !errors.Is(err, store.ErrSlugConflict) {
		t.Errorf("ChangeSlug(other's previous slug) error = %v, want ErrSlugConflict", err)
	}
}

func TestUpdateProfileFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Before", "before")

	name := "After"
	p, err := env.profiles.Update(ctx, owner.Profile.ID, owner.OwnerToken, model.UpdateProfileRequest{
		DisplayName: &name,
		Body:        json.RawMessage(`{"bio":"changed"}`),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.DisplayName != "After" || string(p.Body) != `{"bio":"changed"}` || p.Slug != "before" {
		t.Errorf("Update() = %+v", p)
	}

	_, err = env.profiles.Update(ctx, owner.Profile.ID, owner.OwnerToken, model.UpdateProfileRequest{Body: json.RawMessage(`[1,2]`)})
	var fe *utils.FieldError
	if !errors.As(err, &fe) || fe.Field != "body" {
		t.Errorf("Update(array body) error = %v, want body field error", err)
	}
}

func TestDeleteAndRestoreCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Owner", "owner")

	kept := env.addLink(t, owner, "kept", model.LinkPrivacyPublic, 1)
	removed := env.addLink(t, owner, "removed", model.LinkPrivacyPublic, 2)

	env.links.now = func() time.Time { return testNow.Add(-time.Hour) }
	if err := env.links.Delete(ctx, owner.Profile.ID, owner.OwnerToken, removed.ID); err != nil {
		t.Fatalf("links.Delete() error = %v", err)
	}

	if err := env.profiles.Delete(ctx, owner.Profile.ID, owner.OwnerToken); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := env.profiles.Resolve(ctx, "owner"); !store.IsNotFound(err) {
		t.Errorf("Resolve(deleted profile) error = %v, want ErrNotFound", err)
	}
	if _, err := env.links.Resolve(ctx, kept.ID); !store.IsNotFound(err) {
		t.Errorf("links.Resolve(link of deleted profile) error = %v, want ErrNotFound", err)
	}
	if _, err := env.links.Create(ctx, owner.Profile.ID, owner.OwnerToken, model.CreateLinkRequest{URL: "https://x.io", Title: "x"}); !store.IsNotFound(err) {
		t.Errorf("links.Create(deleted profile) error = %v, want ErrNotFound", err)
	}

	// Soft-deleted profiles keep their slug
	if _, err := env.profiles.Create(ctx, model.CreateProfileRequest{DisplayName: "Squatter", Slug: "owner"}); !errors.Is(err, store.ErrSlugConflict) {
		t.Errorf("Create(deleted profile's slug) error = %v, want ErrSlugConflict", err)
	}

	restored, err := env.profiles.Restore(ctx, owner.Profile.ID, owner.OwnerToken)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.IsDeleted() {
		t.Error("profile still deleted after restore")
	}

	if _, err := env.links.Resolve(ctx, kept.ID); err != nil {
		t.Errorf("links.Resolve(kept) error = %v after restore", err)
	}
	if _, err := env.links.Resolve(ctx, removed.ID); !store.IsNotFound(err) {
		t.Errorf("links.Resolve(removed) error = %v, want ErrNotFound after restore", err)
	}
}

func TestPurgeDeletedReleasesSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Owner", "owner")

	if err := env.profiles.Delete(ctx, owner.Profile.ID, owner.OwnerToken); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	res, err := env.profiles.PurgeDeleted(ctx)
	if err != nil || res.Purged != 0 {
		t.Fatalf("PurgeDeleted(too early) = %+v, %v", res, err)
	}

	env.profiles.now = func() time.Time { return testNow.Add(31 * 24 * time.Hour) }
	res, err = env.profiles.PurgeDeleted(ctx)
	if err != nil || res.Purged != 1 {
		t.Fatalf("PurgeDeleted() = %+v, %v; want 1 purged", res, err)
	}

	avail, err := env.profiles.CheckSlug(ctx, "owner")
	if err != nil || !avail.Available {
		t.Errorf("CheckSlug(owner) after purge = %+v, %v", avail, err)
	}
}

func TestCheckSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "John", "john-doe")

	tests := []struct {
		name      string
		slug      string
		available bool
		wantErr   bool
	}{
		{"free", "jane-doe", true, false},
		{"taken", "john-doe", false, false},
		{"taken case-insensitive", "JOHN-DOE", false, false},
		{"reserved", "api", false, false},
		{"bad grammar", "john--doe", false, true},
		{"encoded traversal", "%2e%2e", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.profiles.CheckSlug(ctx, tt.slug)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckSlug(%q) error = %v, wantErr %v", tt.slug, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if res.Available != tt.available {
				t.Errorf("CheckSlug(%q).Available = %v, want %v", tt.slug, res.Available, tt.available)
			}
			if !res.Available && len(res.Suggestions) == 0 {
				t.Errorf("CheckSlug(%q) returned no suggestions", tt.slug)
			}
		})
	}
}

func TestPublicProfileListsPublicLinksInOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Owner", "owner")

	second := env.addLink(t, owner, "second", model.LinkPrivacyPublic, 2)
	first := env.addLink(t, owner, "first", model.LinkPrivacyPublic, 1)
	env.addLink(t, owner, "hidden", model.LinkPrivacyHidden, 0)
	env.addLink(t, owner, "disabled", model.LinkPrivacyDisabled, 0)

	res, err := env.profiles.Resolve(ctx, "owner")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	pub, err := env.profiles.PublicProfile(ctx, res.Profile)
	if err != nil {
		t.Fatalf("PublicProfile() error = %v", err)
	}

	if len(pub.Links) != 2 || pub.Links[0].ID != first.ID || pub.Links[1].ID != second.ID {
		t.Fatalf("public links = %+v", pub.Links)
	}
	if pub.Links[0].Href != "/l/"+first.ID {
		t.Errorf("Href = %q", pub.Links[0].Href)
	}

	owned, err := env.links.List(ctx, owner.Profile.ID, owner.OwnerToken, false)
	if err != nil || len(owned) != 3 {
		t.Errorf("owner listing without hidden = %d links, %v; want 3", len(owned), err)
	}
	owned, err = env.links.List(ctx, owner.Profile.ID, owner.OwnerToken, true)
	if err != nil || len(owned) != 4 {
		t.Errorf("owner listing with hidden = %d links, %v; want 4", len(owned), err)
	}
}

func TestLinkRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Owner", "owner")
	other := env.create(t, "Other", "other")
	l := env.addLink(t, owner, "site", model.LinkPrivacyPublic, 0)

	if _, err := env.links.Create(ctx, owner.Profile.ID, owner.OwnerToken, model.CreateLinkRequest{URL: "javascript:alert(1)", Title: "x"}); !errors.Is(err, utils.ErrInvalidScheme) {
		t.Errorf("Create(javascript:) error = %v, want ErrInvalidScheme", err)
	}

	if _, err := env.links.Get(ctx, other.Profile.ID, other.OwnerToken, l.ID); !store.IsNotFound(err) {
		t.Errorf("Get(foreign link) error = %v, want ErrNotFound", err)
	}

	disabled := model.LinkPrivacyDisabled
	if _, err := env.links.Update(ctx, owner.Profile.ID, owner.OwnerToken, l.ID, model.UpdateLinkRequest{Privacy: &disabled}); err != nil {
		t.Fatalf("Update(privacy) error = %v", err)
	}
	if _, err := env.links.Resolve(ctx, l.ID); !store.IsNotFound(err) {
		t.Errorf("Resolve(disabled) error = %v, want ErrNotFound", err)
	}

	if err := env.links.Delete(ctx, owner.Profile.ID, owner.OwnerToken, l.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := env.links.Delete(ctx, owner.Profile.ID, owner.OwnerToken, l.ID); !store.IsNotFound(err) {
		t.Errorf("Delete(twice) error = %v, want ErrNotFound", err)
	}
}

type blockHost string

func (b blockHost) Check(rawURL string) error {
	if strings.Contains(rawURL, string(b)) {
		return utils.ErrBlockedURL
	}
	return nil
}

func TestLinkTargetsAreScreened(t *testing.T) {
	env := newTestEnv(t)
	env.links.WithChecker(blockHost("bad.example"))
	ctx := context.Background()
	owner := env.create(t, "Owner", "owner")
	l := env.addLink(t, owner, "fine", model.LinkPrivacyPublic, 0)

	_, err := env.links.Create(ctx, owner.Profile.ID, owner.OwnerToken, model.CreateLinkRequest{URL: "https://bad.example/x", Title: "x"})
	var fe *utils.FieldError
	if !errors.As(err, &fe) || fe.Field != "url" || !errors.Is(err, utils.ErrBlockedURL) {
		t.Errorf("Create(blocked) error = %v, want url FieldError wrapping ErrBlockedURL", err)
	}

	target := "https://bad.example/y"
	if _, err := env.links.Update(ctx, owner.Profile.ID, owner.OwnerToken, l.ID, model.UpdateLinkRequest{URL: &target}); !errors.Is(err, utils.ErrBlockedURL) {
		t.Errorf("Update(blocked) error = %v, want ErrBlockedURL", err)
	}

	got, err := env.links.Get(ctx, owner.Profile.ID, owner.OwnerToken, l.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.URL != l.URL {
		t.Errorf("URL = %q after refused update, want %q", got.URL, l.URL)
	}
}

func TestAnalyticsSummaryAndCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.create(t, "Owner", "owner")
	a := env.addLink(t, owner, "a", model.LinkPrivacyPublic, 0)
	b := env.addLink(t, owner, "b", model.LinkPrivacyHidden, 1)

	click := func(id string, linkID string, age time.Duration) {
		t.Helper()
		err := env.store.RecordClick(ctx, &model.ClickEvent{
			ID: id, LinkID: linkID, ProfileID: owner.Profile.ID, ClickedAt: testNow.Add(-age),
			AccessEvent: model.AccessEvent{Country: "IR", DeviceClass: "mobile"},
		})
		if err != nil {
			t.Fatalf("RecordClick() error = %v", err)
		}
	}
	day := 24 * time.Hour
	click("c1", a.ID, time.Hour)
	click("c2", a.ID, 2*day)
	click("c3", b.ID, 10*day)
	click("c4", a.ID, 100*day)
	if err := env.store.RecordView(ctx, &model.ViewEvent{ID: "v1", ProfileID: owner.Profile.ID, ViewedAt: testNow.Add(-time.Hour)}); err != nil {
		t.Fatalf("RecordView() error = %v", err)
	}

	sum, err := env.analytics.Summary(ctx, owner.Profile.ID, owner.OwnerToken, "", 7)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.TotalClicks != 2 || sum.TotalViews != 1 {
		t.Errorf("7-day totals = %d clicks, %d views; want 2, 1", sum.TotalClicks, sum.TotalViews)
	}
	if len(sum.RecentClicks) != 2 || sum.RecentClicks[0].ID != "c1" {
		t.Errorf("recent clicks = %+v", sum.RecentClicks)
	}
	if len(sum.LinkClicks) != 2 {
		t.Errorf("per-link counts = %+v", sum.LinkClicks)
	}

	sum, err = env.analytics.Summary(ctx, owner.Profile.ID, owner.OwnerToken, b.ID, 0)
	if err != nil || sum.TotalClicks != 1 {
		t.Errorf("Summary(link b, default window) = %+v, %v", sum, err)
	}

	if _, err := env.analytics.Summary(ctx, owner.Profile.ID, owner.OwnerToken, "", 400); !errors.Is(err, ErrValidation) {
		t.Errorf("Summary(days=400) error = %v, want ErrValidation", err)
	}
	if _, err := env.analytics.Summary(ctx, owner.Profile.ID, "", "", 7); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Summary(no token) error = %v, want ErrUnauthorized", err)
	}

	res, err := env.analytics.Cleanup(ctx)
	if err != nil || res.Purged != 1 {
		t.Fatalf("Cleanup() = %+v, %v; want 1 purged", res, err)
	}
	res, err = env.analytics.Cleanup(ctx)
	if err != nil || res.Purged != 0 {
		t.Errorf("second Cleanup() = %+v, %v; want idempotent", res, err)
	}
}

func TestListProfiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i, name := range []string{"One", "Two", "Three"} {
		env.profiles.now = func() time.Time { return testNow.Add(time.Duration(i) * time.Minute) }
		env.create(t, name, "")
	}

	page, err := env.profiles.List(ctx, 0, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 3 || len(page.Profiles) != 2 || page.Profiles[0].Slug != "three" {
		t.Errorf("List() = total %d, %d profiles, first %q", page.Total, len(page.Profiles), page.Profiles[0].Slug)
	}

	if _, err := env.profiles.List(ctx, -1, 10); !errors.Is(err, ErrValidation) {
		t.Errorf("List(offset=-1) error = %v, want ErrValidation", err)
	}
}
