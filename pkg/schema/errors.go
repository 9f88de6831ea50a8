package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a missing or malformed required field. Nothing is persisted.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a reference outside the caller's visible scope.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied signals that the caller neither owns the record nor administers its owner.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStoreCorrupt signals a persisted value that does not parse.
	ErrStoreCorrupt = errors.New("store corrupt")
	// ErrUnauthenticated signals that no principal is signed in.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Required builds the error for an empty required field.
func Required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}
