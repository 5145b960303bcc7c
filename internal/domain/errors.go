// Package domain holds the error kinds and caller identity shared by the
// clinic aggregates (patient, visit, directory, account).
package domain

import "errors"

var (
	// ErrValidation marks input rejected before any store access.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate marks a patient identity that is already registered.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict marks a request the current record state does not allow.
	ErrConflict = errors.New("conflict")
	// ErrStore marks a store failure. Callers may retry.
	ErrStore = errors.New("store unavailable")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// FieldError is a validation failure tied to one input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func (e *FieldError) Unwrap() error { return ErrValidation }

// Invalid returns a validation error for field.
func Invalid(field, msg string) error {
	return &FieldError{Field: field, Message: msg}
}

// Missing returns a validation error for an absent required field.
func Missing(field string) error {
	return &FieldError{Field: field, Message: "is required"}
}

// IsRetryable reports whether err came from the store rather than the input.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStore)
}
