package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity cannot be found in the store
	ErrNotFound = errors.New("not found")

	// ErrInvalidPayload is returned when a job payload cannot be decoded
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrUnauthorized is returned when API credentials are missing or unknown
	ErrUnauthorized = errors.New("invalid api credentials")

	// ErrStaleAttempt is returned when a delivery attempt no longer matches its log
	ErrStaleAttempt = errors.New("stale webhook attempt")
)

// ValidationError reports a malformed or missing request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StateConflictError reports an operation rejected by the current entity state
type StateConflictError struct {
	Code        string
	Description string
}

func (e *StateConflictError) Error() string {
	return e.Code + ": " + e.Description
}

// NewStateConflictError creates a new state conflict error with BAD_REQUEST_ERROR code
func NewStateConflictError(description string) error {
	return &StateConflictError{Code: "BAD_REQUEST_ERROR", Description: description}
}

// NotFoundf wraps ErrNotFound with the entity description
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
