package utils

import (
	"strings"
	"sync"
)

// ReservedSlugs is the floor of slugs that can never name a profile.
// They collide with router paths or are path traversal tokens.
// Deployments extend the set through configuration, see SetExtraReservedSlugs.
var ReservedSlugs = []string{
	// Router prefixes
	"api",
	"api-internal",
	"l",
	"profiles",

	// Static surface
	"static",
	"assets",
	"health",
	"cache",
	"metrics",

	// Platform pages
	"admin",
	"search",
	"about",

	// Path traversal
	".",
	"..",
}

var (
	reservedMu    sync.RWMutex
	reservedExtra = map[string]struct{}{}
)

// SetExtraReservedSlugs replaces the configured additions to ReservedSlugs
func SetExtraReservedSlugs(slugs []string) {
	extra := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			extra[s] = struct{}{}
		}
	}

	reservedMu.Lock()
	reservedExtra = extra
	reservedMu.Unlock()
}

// IsReservedSlug checks if a slug is in the reserved list
// Case-insensitive comparison
func IsReservedSlug(slug string) bool {
	slugLower := strings.ToLower(slug)
	for _, reserved := range ReservedSlugs {
		if slugLower == reserved {
			return true
		}
	}

	reservedMu.RLock()
	_, ok := reservedExtra[slugLower]
	reservedMu.RUnlock()
	return ok
}
