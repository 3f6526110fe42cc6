package utils

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/hatefsystems/search-engine-core-sub000/model"
)

const (
	MaxURLLength         = 2048
	MaxTitleLength       = 200
	MaxDescriptionLength = 500
	MaxDisplayNameLength = 200
	MaxTags              = 20
	MaxTagLength         = 50
)

// ValidateURL checks that a link target is an absolute http(s) URL of bounded length
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}
	if len(rawURL) > MaxURLLength {
		return ErrURLTooLong
	}

	// Parse the URL
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	// Check if scheme is http or https
	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidScheme
	}

	// Check if host is present
	if parsedURL.Host == "" {
		return ErrEmptyHost
	}

	return nil
}

// ValidateDisplayName checks the name a slug is derived from
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewFieldError("displayName", ErrFieldRequired)
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return NewFieldError("displayName", ErrFieldTooLong)
	}
	return nil
}

// ValidateLink checks every user-controlled field of a link block
func ValidateLink(link *model.LinkBlock) error {
	if err := ValidateURL(link.URL); err != nil {
		return NewFieldError("url", err)
	}

	title := strings.TrimSpace(link.Title)
	if title == "" {
		return NewFieldError("title", ErrFieldRequired)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return NewFieldError("title", ErrFieldTooLong)
	}

	if utf8.RuneCountInString(link.Description) > MaxDescriptionLength {
		return NewFieldError("description", ErrFieldTooLong)
	}

	if link.IconURL != "" {
		if err := ValidateURL(link.IconURL); err != nil {
			return NewFieldError("iconUrl", err)
		}
	}

	if len(link.Tags) > MaxTags {
		return NewFieldError("tags", ErrFieldTooLong)
	}
	for _, tag := range link.Tags {
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return NewFieldError("tags", ErrFieldTooLong)
		}
	}

	if !link.Privacy.Valid() {
		return NewFieldError("privacy", ErrInvalidValue)
	}

	return nil
}
