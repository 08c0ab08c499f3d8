package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")
	ErrInternal         = errors.New("internal server error")
	ErrValidation       = errors.New("validation error")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnavailable      = errors.New("service unavailable")
)

// AppError represents an application error with context.
// Message is safe to show to callers; Err carries the internal cause and is never serialized.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// StoreUnavailable reports a failed store read or write. The cause is kept for
// logging; callers only ever see message.
func StoreUnavailable(message string, cause error) *AppError {
	return Wrap(fmt.Errorf("%w: %v", ErrStoreUnavailable, cause), "STORE_UNAVAILABLE", message, http.StatusInternalServerError)
}

// Unavailable reports a component that is shutting down or not ready
func Unavailable(message string) *AppError {
	return Wrap(ErrUnavailable, "SERVICE_UNAVAILABLE", message, http.StatusServiceUnavailable)
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
