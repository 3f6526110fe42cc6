package model

import (
	"encoding/json"
	"time"
)

// ProfileType distinguishes the two profile variants
type ProfileType string

const (
	ProfileTypePerson   ProfileType = "PERSON"
	ProfileTypeBusiness ProfileType = "BUSINESS"
)

// Valid reports whether t is a known profile variant
func (t ProfileType) Valid() bool {
	return t == ProfileTypePerson || t == ProfileTypeBusiness
}

// Profile is a public page reachable at /{slug}.
// Body carries the variant-specific content and is never interpreted by the resolver.
type Profile struct {
	ID             string          `json:"id"`                      // UUID v4
	Type           ProfileType     `json:"type"`                    // PERSON or BUSINESS
	Slug           string          `json:"slug"`                    // Current canonical slug
	PreviousSlugs  []string        `json:"previousSlugs"`           // Prior slugs, oldest first, kept for 301s
	SlugChangedAt  *time.Time      `json:"slugChangedAt,omitempty"` // Last slug change
	DisplayName    string          `json:"displayName"`
	Body           json.RawMessage `json:"body,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	DeletedAt      *time.Time      `json:"deletedAt,omitempty"` // Soft-delete marker
	OwnerTokenHash string          `json:"-"`                   // bcrypt digest, never serialized to clients
}

// IsDeleted reports whether the profile has been soft-deleted
func (p *Profile) IsDeleted() bool {
	return p.DeletedAt != nil
}

// HasPreviousSlug reports whether slug is in the profile's slug history
func (p *Profile) HasPreviousSlug(slug string) bool {
	for _, s := range p.PreviousSlugs {
		if s == slug {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so cached snapshots are never mutated by callers
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.PreviousSlugs != nil {
		c.PreviousSlugs = append([]string(nil), p.PreviousSlugs...)
	}
	if p.Body != nil {
		c.Body = append(json.RawMessage(nil), p.Body...)
	}
	if p.SlugChangedAt != nil {
		t := *p.SlugChangedAt
		c.SlugChangedAt = &t
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// CreateProfileRequest is the body of POST /api/profiles
type CreateProfileRequest struct {
	Type        ProfileType     `json:"type"`
	DisplayName string          `json:"displayName"`
	Slug        string          `json:"slug,omitempty"` // Optional explicit slug, derived from displayName when empty
	Body        json.RawMessage `json:"body,omitempty"`
}

// UpdateProfileRequest is the body of PUT /api/profiles/{id}. Nil fields are left untouched.
type UpdateProfileRequest struct {
	DisplayName *string         `json:"displayName,omitempty"`
	Slug        *string         `json:"slug,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// ChangeSlugRequest is the body of POST /api/profiles/{id}/change-slug
type ChangeSlugRequest struct {
	Slug string `json:"slug"`
}

// CreateProfileResponse is returned once, at creation. It is the only place the owner token appears.
type CreateProfileResponse struct {
	Profile    *Profile `json:"profile"`
	OwnerToken string   `json:"ownerToken"`
	PublicURL  string   `json:"publicURL"`
	QRCodeURL  string   `json:"qrCodeURL"`
}

// PublicProfile is the body served at /{slug}
type PublicProfile struct {
	ID          string          `json:"id"`
	Type        ProfileType     `json:"type"`
	Slug        string          `json:"slug"`
	DisplayName string          `json:"displayName"`
	Body        json.RawMessage `json:"body,omitempty"`
	Links       []PublicLink    `json:"links"`
}

// SlugAvailability is the body of GET /api/profiles/check-slug
type SlugAvailability struct {
	Slug        string   `json:"slug"`
	Available   bool     `json:"available"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ProfileList is a page of live profiles
type ProfileList struct {
	Profiles []*Profile `json:"profiles"`
	Offset   int        `json:"offset"`
	Limit    int        `json:"limit"`
	Total    int64      `json:"total"`
}
