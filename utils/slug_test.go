package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Latin name", "John Doe", "john-doe"},
		{"Persian name", "شرکت موبایل فروشان", "شرکت-موبایل-فروشان"},
		{"Only separators", "  ---  ", "profile"},
		{"French accents", "Café résumé", "cafe-resume"},
		{"German umlauts", "Jürgen Müller", "juergen-mueller"},
		{"Uppercase umlaut", "Öl", "oel"},
		{"Sharp s", "Straße", "strasse"},
		{"Nordic", "Åsa Ørsted", "asa-orsted"},
		{"Cyrillic", "Иван Петров", "ivan-petrov"},
		{"Arabic letter forms folded", "علي كريم", "علی-کریم"},
		{"Presentation forms folded", "ﻋﻠﻲ رضا", "علی-رضا"},
		{"Isolated kaf and yeh forms", "ﻙﺮﯾﻢ", "کریم"},
		{"Lam-alef ligature", "ﻻله", "لاله"},
		{"Persian digits", "فروشگاه ۱۲۳", "فروشگاه-123"},
		{"Arabic-Indic digits", "٤٢", "42"},
		{"Harakat removed", "مُحَمَّد", "محمد"},
		{"Tatweel removed", "ســلام", "سلام"},
		{"Fullwidth compatibility", "Ｊｏｈｎ", "john"},
		{"Mixed punctuation", "Hello, World!! (2024)", "hello-world-2024"},
		{"Arabic punctuation", "سلام، دنیا؟", "سلام-دنیا"},
		{"Emoji only", "🎉🎉", "profile"},
		{"Empty", "", "profile"},
		{"Path traversal", "../..", "profile"},
		{"Reserved word stays derivable", "API", "api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSlug(tt.input)
			if got != tt.want {
				t.Errorf("GenerateSlug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGenerateSlug_PresentationFormsMatchBaseLetters(t *testing.T) {
	pairs := [][2]string{
		{"ﻋﻠﻲ رضا", "علی رضا"},
		{"ﻛﺘﺎﺏ", "کتاب"},
		{"ﺋﻴﻨﻪ", "ئینه"},
	}
	for _, p := range pairs {
		if got, want := GenerateSlug(p[0]), GenerateSlug(p[1]); got != want {
			t.Errorf("GenerateSlug(%q) = %q, want %q like GenerateSlug(%q)", p[0], got, want, p[1])
		}
		norm0, _ := NormalizeSlugInput(p[0])
		norm1, _ := NormalizeSlugInput(p[1])
		if norm0 != norm1 {
			t.Errorf("NormalizeSlugInput(%q) = %q, want %q", p[0], norm0, norm1)
		}
	}
}

func TestGenerateSlug_SatisfiesGrammar(t *testing.T) {
	inputs := []string{
		"John Doe",
		"  --a--b--  ",
		"شرکت   موبایل -- فروشان",
		"ÀÉÎÕÜ àéîõü",
		"\x00\x01 null bytes",
		"%2e%2e%2f",
		"Ελληνικά γράμματα",
		"日本語の名前",
		strings.Repeat("long name ", 40),
		strings.Repeat("ب", 150),
		strings.Repeat("a", 99) + " b",
	}

	for _, in := range inputs {
		got := GenerateSlug(in)
		if err := ValidateSlugGrammar(got); err != nil {
			t.Errorf("GenerateSlug(%q) = %q violates grammar: %v", in, got, err)
		}
		if again := GenerateSlug(in); again != got {
			t.Errorf("GenerateSlug(%q) not deterministic: %q then %q", in, got, again)
		}
	}
}

func TestGenerateSlug_LengthCap(t *testing.T) {
	got := GenerateSlug(strings.Repeat("ب", 150))
	if n := utf8.RuneCountInString(got); n != MaxSlugLength {
		t.Errorf("length = %d code points, want %d", n, MaxSlugLength)
	}

	// Cut lands right after a hyphen, which must be dropped
	got = GenerateSlug(strings.Repeat("a", 99) + " bcd")
	if strings.HasSuffix(got, "-") {
		t.Errorf("truncated slug %q ends with a hyphen", got)
	}
	if got != strings.Repeat("a", 99) {
		t.Errorf("GenerateSlug() = %q, want 99 a's", got)
	}
}

func TestTransliterationTable_UniqueKeys(t *testing.T) {
	seen := make(map[rune]string, len(transliterationTable))
	for _, entry := range transliterationTable {
		if prev, dup := seen[entry.from]; dup {
			t.Errorf("key %q mapped twice: %q and %q", entry.from, prev, entry.to)
		}
		seen[entry.from] = entry.to
	}
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr error
	}{
		{"Valid latin", "john-doe", nil},
		{"Valid persian", "شرکت-تست", nil},
		{"Valid digits", "team-42", nil},
		{"Empty", "", ErrSlugInvalid},
		{"Leading hyphen", "-john", ErrSlugInvalid},
		{"Trailing hyphen", "john-", ErrSlugInvalid},
		{"Double hyphen", "john--doe", ErrSlugInvalid},
		{"Uppercase", "John", ErrSlugInvalid},
		{"Underscore", "john_doe", ErrSlugInvalid},
		{"Dot", "john.doe", ErrSlugInvalid},
		{"Arabic mark", "مُ", ErrSlugInvalid},
		{"Too long", strings.Repeat("a", MaxSlugLength+1), ErrSlugInvalid},
		{"Max length", strings.Repeat("ب", MaxSlugLength), nil},
		{"Reserved", "api", ErrSlugReserved},
		{"Reserved l", "l", ErrSlugReserved},
		{"Reserved dots", "..", ErrSlugInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlug(tt.slug)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSlug(%q) = %v, want %v", tt.slug, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeSlugInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Trim and lower", "  John-Doe ", "john-doe", false},
		{"Arabic forms", "علي", "علی", false},
		{"Presentation forms", "ﻋﻠﻲ-رضا", "علی-رضا", false},
		{"Persian digits", "تست-۱۲", "تست-12", false},
		{"Null byte", "john\x00", "", true},
		{"Percent encoded", "%2e%2e", "", true},
		{"Slash", "a/b", "", true},
		{"Backslash", `a\b`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSlugInput(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeSlugInput(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeSlugInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func takenSet(slugs ...string) SlugExistsFunc {
	set := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		set[s] = true
	}
	return func(_ context.Context, slug string) (bool, error) {
		return set[slug], nil
	}
}

func TestResolveSlugConflict(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		base  string
		taken []string
		want  string
	}{
		{"Free base", "john-doe", nil, "john-doe"},
		{"First suffix", "john-doe", []string{"john-doe"}, "john-doe-2"},
		{"Skips taken suffixes", "john-doe", []string{"john-doe", "john-doe-2", "john-doe-3"}, "john-doe-4"},
		{"Reserved base", "api", nil, "api-2"},
		{"Persian base", "تست", []string{"تست"}, "تست-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSlugConflict(ctx, tt.base, takenSet(tt.taken...), 0)
			if err != nil {
				t.Fatalf("ResolveSlugConflict() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveSlugConflict() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveSlugConflict_LongBaseStaysWithinLimit(t *testing.T) {
	base := strings.Repeat("a", MaxSlugLength)
	got, err := ResolveSlugConflict(context.Background(), base, takenSet(base), 0)
	if err != nil {
		t.Fatalf("ResolveSlugConflict() error = %v", err)
	}
	if n := utf8.RuneCountInString(got); n > MaxSlugLength {
		t.Errorf("length = %d, want <= %d", n, MaxSlugLength)
	}
	if !strings.HasSuffix(got, "-2") {
		t.Errorf("ResolveSlugConflict() = %q, want -2 suffix", got)
	}
	if err := ValidateSlug(got); err != nil {
		t.Errorf("resolved slug %q invalid: %v", got, err)
	}
}

func TestResolveSlugConflict_Exhausted(t *testing.T) {
	always := func(context.Context, string) (bool, error) { return true, nil }

	_, err := ResolveSlugConflict(context.Background(), "john", always, 50)
	if !errors.Is(err, ErrSlugExhausted) {
		t.Errorf("error = %v, want %v", err, ErrSlugExhausted)
	}
}

func TestResolveSlugConflict_StoreError(t *testing.T) {
	boom := errors.New("store down")
	failing := func(context.Context, string) (bool, error) { return false, boom }

	_, err := ResolveSlugConflict(context.Background(), "john", failing, 0)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestResolveSlugConflict_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	always := func(context.Context, string) (bool, error) { return true, nil }

	_, err := ResolveSlugConflict(ctx, "john", always, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want %v", err, context.Canceled)
	}
}
