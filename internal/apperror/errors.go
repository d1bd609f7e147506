// Package apperror defines the error taxonomy shared by services and the HTTP boundary.
// Handlers map each kind to an HTTP status; services wrap backing-store faults before
// letting them escape.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed caller input (4xx).
	ErrValidation = errors.New("validation error")
	// ErrConflict marks identity ambiguity or a uniqueness violation (409).
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks a missing resource where absence is an error (404).
	ErrNotFound = errors.New("not found")
	// ErrInternal marks a backing-store or unexpected fault (500); details are not leaked to callers.
	ErrInternal = errors.New("internal error")
	// ErrRateLimited marks a caller exceeding a request budget (429).
	ErrRateLimited = errors.New("rate limited")
)

// Validation returns a validation error with a caller-facing message.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Conflict returns a conflict error with a caller-facing message.
func Conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

// Internal wraps a backing-store fault. The cause is kept in the chain for logging
// but handlers only surface the generic kind.
func Internal(cause error) error {
	return fmt.Errorf("%w: %v", ErrInternal, cause)
}

// Message returns the caller-facing message for err: the text after the kind prefix,
// or a generic message for internal errors.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInternal) {
		return "internal server error"
	}
	return err.Error()
}
