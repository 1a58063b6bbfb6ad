package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned by service functions when input fails business
// rule validation (e.g. empty photo set, non-positive cluster thresholds,
// end before start). It is always returned before any store call is made.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrInvalidInput = errors.New("invalid input")

// ErrForbidden is returned when a record exists but belongs to another owner.
// Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a conditional write lost a race, e.g. another
// clustering run claimed the same photos first.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrStoreFailure marks an error that originated in the persistence layer.
// Use errors.Is(err, ErrStoreFailure) to detect it; errors.As with *StoreError
// recovers the step that failed.
var ErrStoreFailure = errors.New("store failure")

// StoreError wraps a persistence error with the step of a multi-write
// operation that produced it (e.g. "insert trip", "assign photos").
// It matches both ErrStoreFailure and the underlying error under errors.Is.
type StoreError struct {
	Step string
	Err  error
}

// NewStoreError wraps err as a StoreError for the given step.
func NewStoreError(step string, err error) *StoreError {
	return &StoreError{Step: step, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreFailure, e.Step, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreFailure, e.Err}
}
