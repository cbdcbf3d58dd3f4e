package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")

	// Scheduling errors, surfaced synchronously to the caller of the
	// scheduling API. They are never retried.
	ErrUnknownStatusType    = errors.New("unknown status type")
	ErrMissingCategory      = errors.New("category required")
	ErrInvalidDuration      = errors.New("invalid duration")
	ErrInvalidExecutionTime = errors.New("invalid execution time")

	// Execution-time errors. These are recorded on the timer record by the
	// sweep engine rather than returned to a caller.
	ErrEntityGone              = errors.New("entity gone")
	ErrIncompatibleEntityState = errors.New("incompatible entity state")

	// ErrClaimLost signals that another worker claimed the timer first.
	// It is a skip condition, not a failure.
	ErrClaimLost = errors.New("claim lost")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}
