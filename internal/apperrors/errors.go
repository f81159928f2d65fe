// Package apperrors provides typed application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error for metrics and response formatting.
type ErrorType string

const (
	// TypeUnauthenticated indicates a missing or invalid identity (HTTP 401)
	TypeUnauthenticated ErrorType = "unauthenticated"
	// TypeForbidden indicates the identity may not act on the resource (HTTP 403)
	TypeForbidden ErrorType = "forbidden"
	// TypeValidation indicates invalid input (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates resource not found (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeConflict indicates resource conflict (HTTP 409)
	TypeConflict ErrorType = "conflict"
	// TypeInternal indicates a storage or other server-side failure (HTTP 500)
	TypeInternal ErrorType = "internal"
	// TypeExternal indicates an upstream service failure (HTTP 502)
	TypeExternal ErrorType = "external"
	// TypeUnavailable indicates a dependency is disabled or shedding load (HTTP 503)
	TypeUnavailable ErrorType = "unavailable"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error represents a structured error with type, message, and cause.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Fields  []FieldError
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeUnauthenticated:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeExternal:
		return http.StatusBadGateway
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Unauthenticated(message string) *Error {
	return &Error{Type: TypeUnauthenticated, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Type: TypeForbidden, Message: message}
}

func InvalidArgument(message string) *Error {
	return &Error{Type: TypeValidation, Message: message}
}

// Validation creates a validation error carrying per-field details.
func Validation(fields ...FieldError) *Error {
	return &Error{Type: TypeValidation, Message: "Validation failed", Fields: fields}
}

func NotFound(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Type: TypeConflict, Message: message}
}

// Storage wraps a database failure. The cause is logged, never shown to clients.
func Storage(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

func External(message string, cause error) *Error {
	return &Error{Type: TypeExternal, Message: message, Cause: cause}
}

func Unavailable(message string, cause error) *Error {
	return &Error{Type: TypeUnavailable, Message: message, Cause: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// TypeOf returns the error type, or TypeInternal for untyped errors.
func TypeOf(err error) ErrorType {
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return TypeInternal
}

// Is reports whether err carries an *Error of the given type.
func Is(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}
