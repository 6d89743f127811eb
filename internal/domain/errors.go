package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job cannot be found in the store
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyExists is returned when creating a job whose ID is already taken
	ErrAlreadyExists = errors.New("job already exists")

	// ErrInvalidTransition is returned when a status change is not allowed from the stored status
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidStorageKey is returned when an object key does not follow the storage key layout
	ErrInvalidStorageKey = errors.New("invalid storage key")
)

// ValidationError reports malformed submission input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error for a request field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Processing stages reported by ProcessingError.
const (
	StageFetch     = "fetch"
	StageInference = "inference"
	StageParse     = "parse"
	StageStore     = "store"
)

// ProcessingError is a failure inside the worker pipeline. It is recorded on the
// job as its error message rather than returned to the client.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return e.Stage + " failed: " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewProcessingError wraps err with the pipeline stage it happened in
func NewProcessingError(stage string, err error) error {
	return &ProcessingError{Stage: stage, Err: err}
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
