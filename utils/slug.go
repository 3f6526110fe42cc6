package utils

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxSlugLength is measured in code points, not bytes
	MaxSlugLength = 100

	// FallbackSlug is used when a name sanitizes to nothing
	FallbackSlug = "profile"

	// DefaultSlugAttempts bounds the -2, -3, ... suffix search
	DefaultSlugAttempts = 10000
)

type transliteration struct {
	from rune
	to   string
}

// transliterationTable is the single canonical mapping applied before
// decomposition. Keys are lowercase; uppercase input is looked up through
// unicode.ToLower. Keys must be unique across all sections.
var transliterationTable = []transliteration{
	// German
	{'ä', "ae"}, {'ö', "oe"}, {'ü', "ue"}, {'ß', "ss"},

	// Nordic
	{'å', "a"}, {'æ', "ae"}, {'ø', "o"}, {'þ', "th"}, {'ð', "d"},

	// Ligatures
	{'œ', "oe"}, {'ĳ', "ij"},

	// Central European and Turkish letters without a decomposition
	{'ł', "l"}, {'đ', "d"}, {'ħ', "h"}, {'ı', "i"},

	// Cyrillic
	{'а', "a"}, {'б', "b"}, {'в', "v"}, {'г', "g"}, {'д', "d"}, {'е', "e"},
	{'ё', "e"}, {'ж', "zh"}, {'з', "z"}, {'и', "i"}, {'й', "y"}, {'к', "k"},
	{'л', "l"}, {'м', "m"}, {'н', "n"}, {'о', "o"}, {'п', "p"}, {'р', "r"},
	{'с', "s"}, {'т', "t"}, {'у', "u"}, {'ф', "f"}, {'х', "kh"}, {'ц', "ts"},
	{'ч', "ch"}, {'ш', "sh"}, {'щ', "shch"}, {'ъ', ""}, {'ы', "y"}, {'ь', ""},
	{'э', "e"}, {'ю', "yu"}, {'я', "ya"}, {'і', "i"}, {'ї', "yi"}, {'є', "ye"},
	{'ґ', "g"},

	// Arabic letter forms folded to their Persian equivalents
	{'ي', "ی"},
	{'ى', "ی"},
	{'ئ', "ی"},
	{'ك', "ک"},
	{'ة', "ه"},
	{'أ', "ا"},
	{'إ', "ا"},
	{'آ', "ا"},
	{'ؤ', "و"},
}

var transliterations = buildTransliterations(transliterationTable)

func buildTransliterations(table []transliteration) map[rune]string {
	m := make(map[rune]string, len(table))
	for _, t := range table {
		if _, dup := m[t.from]; dup {
			panic(fmt.Sprintf("utils: duplicate transliteration key %q", t.from))
		}
		m[t.from] = t.to
	}
	return m
}

// digitFolder maps Arabic-Indic and Extended Arabic-Indic digits to ASCII
var digitFolder = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
)

const tatweel = 'ـ'

// GenerateSlug derives the canonical slug for a display name.
// The result always satisfies ValidateSlugGrammar; it may still be reserved or taken.
func GenerateSlug(name string) string {
	s := transliterate(norm.NFC.String(foldPresentationForms(name)))
	s = norm.NFKD.String(s)
	s = stripMarks(s)
	s = digitFolder.Replace(s)
	s = lowerASCII(s)
	s = sanitize(s)
	s = truncateSlug(s, MaxSlugLength)

	if s == "" {
		return FallbackSlug
	}
	return s
}

func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if to, ok := transliterations[r]; ok {
			b.WriteString(to)
			continue
		}
		if lower := unicode.ToLower(r); lower != r {
			if to, ok := transliterations[lower]; ok {
				b.WriteString(to)
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isPresentationForm reports Arabic Presentation Forms-A and -B code points
func isPresentationForm(r rune) bool {
	return (r >= 0xFB50 && r <= 0xFDFF) || (r >= 0xFE70 && r <= 0xFEFF)
}

// foldPresentationForms replaces positional and ligature forms with their
// base letters so they reach the Arabic fold as ordinary letters.
func foldPresentationForms(s string) string {
	if !strings.ContainsFunc(s, isPresentationForm) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isPresentationForm(r) {
			b.WriteString(norm.NFKC.String(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripMarks drops combining marks (Latin accents, Arabic harakat) and tatweel
func stripMarks(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.M, r) || r == tatweel {
			return -1
		}
		return r
	}, s)
}

func lowerASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// isSlugLetter reports whether r may appear in a slug besides '-'
func isSlugLetter(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r >= 0x0600 && r <= 0x06FF:
		return unicode.IsLetter(r)
	}
	return false
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true // suppresses leading hyphens
	for _, r := range s {
		if isSlugLetter(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// truncateSlug caps s at max code points and drops a trailing hyphen left by the cut
func truncateSlug(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:max]), "-")
}

// ValidateSlugGrammar checks a slug against the grammar only, ignoring the reserved list
func ValidateSlugGrammar(slug string) error {
	if slug == "" {
		return ErrSlugInvalid
	}
	if utf8.RuneCountInString(slug) > MaxSlugLength {
		return ErrSlugInvalid
	}
	if slug[0] == '-' || slug[len(slug)-1] == '-' || strings.Contains(slug, "--") {
		return ErrSlugInvalid
	}
	for _, r := range slug {
		if r != '-' && !isSlugLetter(r) {
			return ErrSlugInvalid
		}
	}
	return nil
}

// ValidateSlug validates a slug for use as a profile address.
// Rules:
// - 1 to 100 code points
// - Characters: a-z, 0-9, -, and Arabic-script letters
// - No leading, trailing or doubled hyphens
// - Cannot be a reserved word
func ValidateSlug(slug string) error {
	if err := ValidateSlugGrammar(slug); err != nil {
		return err
	}
	if IsReservedSlug(slug) {
		return ErrSlugReserved
	}
	return nil
}

// NormalizeSlugInput canonicalizes a client-supplied slug without sanitizing it:
// surrounding space is trimmed, ASCII is lowercased and Arabic letter forms and
// digits are folded the same way GenerateSlug folds them. Control characters and
// percent-encoded sequences are rejected.
func NormalizeSlugInput(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.ContainsAny(s, "\x00%/\\") {
		return "", ErrSlugInvalid
	}
	s = norm.NFC.String(foldPresentationForms(s))
	s = strings.Map(func(r rune) rune {
		if r >= 0x0600 && r <= 0x06FF {
			if to, ok := transliterations[r]; ok {
				folded, _ := utf8.DecodeRuneInString(to)
				return folded
			}
		}
		return r
	}, s)
	s = digitFolder.Replace(s)
	return lowerASCII(s), nil
}

// SlugExistsFunc reports whether a slug is already claimed
type SlugExistsFunc func(ctx context.Context, slug string) (bool, error)

// withSuffix appends -n to base, shortening base so the result stays within MaxSlugLength
func withSuffix(base string, n int) string {
	suffix := fmt.Sprintf("-%d", n)
	room := MaxSlugLength - len(suffix)
	trimmed := strings.TrimRight(truncateSlug(base, room), "-")
	if trimmed == "" {
		trimmed = FallbackSlug
	}
	return trimmed + suffix
}

// ResolveSlugConflict returns base if it is free, otherwise the first free
// base-2, base-3, ... up to maxAttempts. Reserved candidates count as taken.
func ResolveSlugConflict(ctx context.Context, base string, exists SlugExistsFunc, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultSlugAttempts
	}

	free := func(candidate string) (bool, error) {
		if IsReservedSlug(candidate) {
			return false, nil
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return false, err
		}
		return !taken, nil
	}

	ok, err := free(base)
	if err != nil {
		return "", err
	}
	if ok {
		return base, nil
	}

	for n := 2; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := withSuffix(base, n)
		ok, err := free(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}

	return "", ErrSlugExhausted
}
