// Package apperror defines the application error taxonomy and its mapping to
// HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorises an application error.
type ErrorType int

const (
	// InternalError is an unexpected failure, e.g. a disk write error.
	InternalError ErrorType = iota
	// ValidationError is malformed input.
	ValidationError
	// AuthError is a missing or unknown bearer token, or bad credentials.
	AuthError
	// ForbiddenError means the caller is authenticated but is neither owner nor admin.
	ForbiddenError
	// ConflictError is a duplicate username or email.
	ConflictError
	// NotFoundError is an unknown class, partial or activity.
	NotFoundError
)

// AppError is an error with a category and a user-facing message.
// Err keeps the underlying cause for logs and is never sent to clients.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status for the error type.
// Conflicts answer 400 to match the existing clients.
func (e *AppError) StatusCode() int {
	switch e.Type {
	case ValidationError, ConflictError:
		return http.StatusBadRequest
	case AuthError:
		return http.StatusUnauthorized
	case ForbiddenError:
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func New(errType ErrorType, message string, err error) *AppError {
	return &AppError{Type: errType, Message: message, Err: err}
}

func NewValidationError(message string, err error) *AppError {
	return New(ValidationError, message, err)
}

func NewAuthError(message string, err error) *AppError {
	return New(AuthError, message, err)
}

func NewForbiddenError(message string, err error) *AppError {
	return New(ForbiddenError, message, err)
}

func NewConflictError(message string, err error) *AppError {
	return New(ConflictError, message, err)
}

func NewNotFoundError(message string, err error) *AppError {
	return New(NotFoundError, message, err)
}

func NewInternalError(message string, err error) *AppError {
	return New(InternalError, message, err)
}

// From returns the first *AppError in err's chain. Anything else is reported
// as an internal error with a generic message.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("internal server error", err)
}

func is(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

func IsValidation(err error) bool { return is(err, ValidationError) }
func IsAuth(err error) bool       { return is(err, AuthError) }
func IsForbidden(err error) bool  { return is(err, ForbiddenError) }
func IsConflict(err error) bool   { return is(err, ConflictError) }
func IsNotFound(err error) bool   { return is(err, NotFoundError) }
