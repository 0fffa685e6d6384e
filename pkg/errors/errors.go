package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
)

// AppError represents an application error
type AppError struct {
	Kind    Kind              `json:"-"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
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

// StatusCode maps the error kind onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Validation builds a field-keyed validation error.
func Validation(fields map[string]string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

// Field is a shorthand for a single-field validation error.
func Field(name, message string) *AppError {
	return Validation(map[string]string{name: message})
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Err:     err,
	}
}

func Unauthenticated(message string) *AppError {
	return &AppError{
		Kind:    KindUnauthenticated,
		Message: message,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Kind:    KindForbidden,
		Message: message,
	}
}

func NotFound(message string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: message,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Message: message,
		Err:     err,
	}
}

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
