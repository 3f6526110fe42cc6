package utils

import "testing"

func TestIsReservedSlug(t *testing.T) {
	tests := []struct {
		name     string
		slug     string
		expected bool
	}{
		{"Reserved - api", "api", true},
		{"Reserved - API (uppercase)", "API", true},
		{"Reserved - Admin (mixed case)", "Admin", true},
		{"Reserved - l", "l", true},
		{"Reserved - profiles", "profiles", true},
		{"Reserved - api-internal", "api-internal", true},
		{"Reserved - dot", ".", true},
		{"Reserved - dot dot", "..", true},
		{"Reserved - health", "health", true},
		{"Not reserved - profile", "profile", false},
		{"Not reserved - john-doe", "john-doe", false},
		{"Not reserved - api-docs", "api-docs", false}, // Contains reserved word but not exact match
		{"Empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsReservedSlug(tt.slug)
			if result != tt.expected {
				t.Errorf("IsReservedSlug(%q) = %v, want %v", tt.slug, result, tt.expected)
			}
		})
	}
}

func TestSetExtraReservedSlugs(t *testing.T) {
	t.Cleanup(func() { SetExtraReservedSlugs(nil) })

	SetExtraReservedSlugs([]string{" Login ", "dashboard", ""})

	for _, slug := range []string{"login", "LOGIN", "dashboard"} {
		if !IsReservedSlug(slug) {
			t.Errorf("IsReservedSlug(%q) = false after configuring it", slug)
		}
	}

	SetExtraReservedSlugs(nil)
	if IsReservedSlug("login") {
		t.Error("configured slug still reserved after reset")
	}
	if !IsReservedSlug("api") {
		t.Error("floor slug lost after reset")
	}
}
