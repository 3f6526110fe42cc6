package utils

import (
	"context"
	"fmt"
	"math/rand"
)

// GenerateSlugSuggestions generates alternative slugs when the requested slug is taken
// It tries multiple strategies:
// 1. Numeric suffixes: john-doe-2, john-doe-3, john-doe-4
// 2. Random suffixes: john-doe-x17, john-doe-x42
// Returns only free, non-reserved slugs up to maxSuggestions
func GenerateSlugSuggestions(ctx context.Context, baseSlug string, exists SlugExistsFunc, maxSuggestions int) []string {
	if maxSuggestions <= 0 {
		maxSuggestions = 3
	}

	suggestions := make([]string, 0, maxSuggestions)
	add := func(candidate string) {
		if contains(suggestions, candidate) || ValidateSlug(candidate) != nil {
			return
		}
		taken, err := exists(ctx, candidate)
		if err != nil || taken {
			// A store error means we cannot vouch for the candidate
			return
		}
		suggestions = append(suggestions, candidate)
	}

	// Strategy 1: Numeric suffixes
	for i := 2; i <= maxSuggestions+5 && len(suggestions) < maxSuggestions; i++ {
		add(withSuffix(baseSlug, i))
	}

	// Strategy 2: Random suffixes, only if numeric ones ran out
	for attempt := 0; attempt < 10 && len(suggestions) < maxSuggestions; attempt++ {
		if ctx.Err() != nil {
			break
		}
		add(truncateSlug(fmt.Sprintf("%s-x%d", baseSlug, rand.Intn(90)+10), MaxSlugLength))
	}

	return suggestions
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
