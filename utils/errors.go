package utils

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyURL       = errors.New("URL cannot be empty")
	ErrInvalidURL     = errors.New("invalid URL format")
	ErrInvalidScheme  = errors.New("URL scheme must be http or https")
	ErrEmptyHost      = errors.New("URL host cannot be empty")
	ErrURLTooLong     = errors.New("URL exceeds 2048 characters")
	ErrBlockedURL     = errors.New("URL target is blocklisted")
	ErrSlugInvalid    = errors.New("slug does not match the slug grammar")
	ErrSlugReserved   = errors.New("slug is reserved")
	ErrSlugExhausted  = errors.New("no free slug suffix left")
	ErrFieldTooLong   = errors.New("field too long")
	ErrFieldRequired  = errors.New("field is required")
	ErrInvalidValue   = errors.New("invalid value")
	ErrTokenGenerator = errors.New("owner token generation failed")
)

// FieldError attaches the offending request field to a validation error
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// NewFieldError wraps err with the name of the field that caused it
func NewFieldError(field string, err error) *FieldError {
	return &FieldError{Field: field, Err: err}
}

// IsURLError reports whether err came from ValidateURL
func IsURLError(err error) bool {
	return errors.Is(err, ErrEmptyURL) ||
		errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrInvalidScheme) ||
		errors.Is(err, ErrEmptyHost) ||
		errors.Is(err, ErrURLTooLong) ||
		errors.Is(err, ErrBlockedURL)
}
