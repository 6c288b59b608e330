// Package apierrors contains the errors returned by the API handlers, carrying the HTTP status
// and the detail that will be encoded to the client.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an APIError.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidTransition Kind = "invalid_transition"
	KindBadRequest        Kind = "bad_request"
)

// APIError represents an error with an HTTP status code associated.
type APIError struct {
	Kind           Kind   `json:"kind,omitempty"`
	Detail         string `json:"detail"`
	httpStatusCode int
}

// APIErrorOption determines the Functional Options used to create a new APIError.
type APIErrorOption func(apiError *APIError)

// WithDetail sets the error detail.
func WithDetail(detail string) APIErrorOption {
	return func(apiError *APIError) {
		apiError.Detail = detail
	}
}

// WithHTTPStatusCode sets the HTTP status code returned with the error.
func WithHTTPStatusCode(statusCode int) APIErrorOption {
	return func(apiError *APIError) {
		apiError.httpStatusCode = statusCode
	}
}

// WithKind sets the error kind.
func WithKind(kind Kind) APIErrorOption {
	return func(apiError *APIError) {
		apiError.Kind = kind
	}
}

// NewAPIError creates a new APIError. Without options the status is 500.
func NewAPIError(opts ...APIErrorOption) *APIError {
	apiError := &APIError{httpStatusCode: http.StatusInternalServerError}
	for _, opt := range opts {
		opt(apiError)
	}
	return apiError
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// HTTPStatusCode returns the HTTP status code associated to the error.
func (e *APIError) HTTPStatusCode() int {
	return e.httpStatusCode
}

// NotFound creates an APIError of kind KindNotFound.
func NotFound(detail string) *APIError {
	return NewAPIError(WithKind(KindNotFound), WithDetail(detail), WithHTTPStatusCode(http.StatusNotFound))
}

// Forbidden creates an APIError of kind KindForbidden.
func Forbidden(detail string) *APIError {
	return NewAPIError(WithKind(KindForbidden), WithDetail(detail), WithHTTPStatusCode(http.StatusForbidden))
}

// InvalidTransition creates an APIError of kind KindInvalidTransition.
func InvalidTransition(detail string) *APIError {
	return NewAPIError(WithKind(KindInvalidTransition), WithDetail(detail), WithHTTPStatusCode(http.StatusConflict))
}

// KindOf returns the kind of the given error if it is, or wraps, an APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// ValidationError represents an invalid input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// IsValidationError checks if the given error is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
