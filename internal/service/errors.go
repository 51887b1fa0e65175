package service

import (
	"errors"
	"net/http"
)

// ValidationError rejects malformed or unsupported input. Not retried.
type ValidationError struct {
	msg string
}

func NewValidationError(msg string) *ValidationError { return &ValidationError{msg: msg} }

func (e *ValidationError) Error() string { return e.msg }

// ConflictError signals a duplicate idempotency key still in flight. The
// client should retry later.
type ConflictError struct {
	msg string
}

func NewConflictError(msg string) *ConflictError { return &ConflictError{msg: msg} }

func (e *ConflictError) Error() string { return e.msg }

// DependencyError wraps a failure of an external collaborator or the store.
// The coordinator fails closed on these: the outcome can never be a double
// charge.
type DependencyError struct {
	msg string
	err error
}

func NewDependencyError(msg string, err error) *DependencyError {
	return &DependencyError{msg: msg, err: err}
}

func (e *DependencyError) Error() string { return e.msg }
func (e *DependencyError) Unwrap() error { return e.err }

// StatusFor maps the error taxonomy to an HTTP status code
func StatusFor(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return http.StatusConflict
	}
	var de *DependencyError
	if errors.As(err, &de) {
		// Dependency trouble during a claim means the key may be live
		// elsewhere; surface it as a retryable conflict.
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
