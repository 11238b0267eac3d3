// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values wrapping one of the sentinels below; the
// HTTP layer uses errors.Is to pick a status code and errors.As to pull out
// the human-readable message.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrPolicy       = errors.New("policy violation")
	ErrUnavailable  = errors.New("dependency unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unauthorized reports missing or invalid credentials (admin key, token).
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Policy reports a request whose preconditions do not hold, e.g. a second
// reactivation request while one is outstanding. The caller can retry once
// the precondition is met.
func Policy(message string) *AppError {
	return &AppError{
		Err:     ErrPolicy,
		Message: message,
	}
}

// Unavailable wraps a failure of an external dependency (store, classifier).
// The cause is kept in the chain for logging but never shown to clients.
func Unavailable(dependency string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %s: %w", ErrUnavailable, dependency, cause),
		Message: fmt.Sprintf("%s is temporarily unavailable", dependency),
	}
}

// WithMessage returns a copy of e with a different client-facing message.
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{Err: e.Err, Message: message, Field: e.Field}
}
