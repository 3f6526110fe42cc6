package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a profile or link does not exist, or is not live
	ErrNotFound = errors.New("entity not found")

	// ErrSlugConflict is returned when a slug is already claimed by another profile
	ErrSlugConflict = errors.New("slug already claimed")

	// ErrInvalidData is returned when a stored record cannot be decoded
	ErrInvalidData = errors.New("invalid data format")

	// ErrConnectionFailed is returned when the backing database cannot be reached
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when schema migration fails
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrTxFailed is returned when a transaction cannot begin or commit
	ErrTxFailed = errors.New("transaction failed")
)

// StoreError wraps a store failure with the operation and entity involved.
// It unwraps to one of the sentinels above, or to the driver error.
type StoreError struct {
	Op      string // Operation that failed (e.g., "CreateProfile")
	Entity  string // Entity type (e.g., "profile", "link")
	ID      string // Entity ID or slug if applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// IsNotFound reports whether err is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsSlugConflict reports whether err is or wraps ErrSlugConflict
func IsSlugConflict(err error) bool {
	return errors.Is(err, ErrSlugConflict)
}
