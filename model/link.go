package model

import "time"

// LinkPrivacy controls where a link block is visible
type LinkPrivacy string

const (
	LinkPrivacyPublic   LinkPrivacy = "PUBLIC"   // Listed on the public profile and resolvable
	LinkPrivacyHidden   LinkPrivacy = "HIDDEN"   // Resolvable, excluded from listings unless requested
	LinkPrivacyDisabled LinkPrivacy = "DISABLED" // 404 on /l/{linkId}, no analytics
)

// Valid reports whether p is a known privacy level
func (p LinkPrivacy) Valid() bool {
	switch p {
	case LinkPrivacyPublic, LinkPrivacyHidden, LinkPrivacyDisabled:
		return true
	}
	return false
}

// LinkBlock is a profile-owned redirect target reached via /l/{linkId}
type LinkBlock struct {
	ID          string      `json:"id"` // ULID
	ProfileID   string      `json:"profileId"`
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	IconURL     string      `json:"iconUrl,omitempty"`
	Tags        []string    `json:"tags"`
	SortOrder   int         `json:"sortOrder"`
	Privacy     LinkPrivacy `json:"privacy"`
	IsActive    bool        `json:"isActive"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	DeletedAt   *time.Time  `json:"deletedAt,omitempty"` // Set by soft delete, or by the owning profile's soft delete
}

// Resolvable reports whether /l/{linkId} may redirect to this link
func (l *LinkBlock) Resolvable() bool {
	return l.IsActive && l.Privacy != LinkPrivacyDisabled
}

// PublicLink is the shape of a link embedded in a public profile response
type PublicLink struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	IconURL     string   `json:"iconUrl,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Href        string   `json:"href"` // Always /l/{linkId} so clicks are counted
}

// LinkFilter narrows owner listings
type LinkFilter struct {
	IncludeHidden   bool
	IncludeInactive bool
}

// CreateLinkRequest is the body of POST /api/profiles/{id}/links
type CreateLinkRequest struct {
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	IconURL     string      `json:"iconUrl,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	SortOrder   int         `json:"sortOrder"`
	Privacy     LinkPrivacy `json:"privacy,omitempty"` // Defaults to PUBLIC
}

// UpdateLinkRequest is the body of PUT /api/profiles/{id}/links/{linkId}. Nil fields are left untouched.
type UpdateLinkRequest struct {
	URL         *string      `json:"url,omitempty"`
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	IconURL     *string      `json:"iconUrl,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	SortOrder   *int         `json:"sortOrder,omitempty"`
	Privacy     *LinkPrivacy `json:"privacy,omitempty"`
	IsActive    *bool        `json:"isActive,omitempty"`
}
