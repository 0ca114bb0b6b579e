// Package errors defines unified error types for cache and memory operations.
// Backend-specific failures (Redis, vector index, Postgres) are mapped to
// these standard error types before they cross a package boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// CacheError represents a standardized error from a cache or memory operation.
// It contains all necessary information for error handling, logging, and client response.
type CacheError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Namespace  string `json:"namespace,omitempty"`
	Backend    string `json:"backend,omitempty"`
	Retryable  bool   `json:"-"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	return fmt.Sprintf("[%s] %s (namespace=%s, backend=%s, code=%d)",
		e.Type, e.Message, e.Namespace, e.Backend, e.StatusCode)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *CacheError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// Common error types as constants for consistency.
const (
	TypeAuthentication      = "authentication_error"
	TypeForbidden           = "forbidden_error"
	TypeRateLimit           = "rate_limit_error"
	TypeInvalidRequest      = "invalid_request_error"
	TypeNotFound            = "not_found_error"
	TypeUpstreamUnavailable = "upstream_unavailable_error"
	TypeInternalError       = "internal_error"
)

// NewAuthenticationError creates an authentication error (401).
func NewAuthenticationError(message string) *CacheError {
	return &CacheError{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Type:       TypeAuthentication,
		Retryable:  false,
	}
}

// NewForbiddenError creates a forbidden error (403) for a namespace the
// caller's credential does not grant.
func NewForbiddenError(namespace, message string) *CacheError {
	return &CacheError{
		StatusCode: http.StatusForbidden,
		Message:    message,
		Type:       TypeForbidden,
		Namespace:  namespace,
		Retryable:  false,
	}
}

// NewRateLimitError creates a rate limit error (429).
func NewRateLimitError(message string) *CacheError {
	return &CacheError{
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
		Type:       TypeRateLimit,
		Retryable:  true,
	}
}

// NewInvalidRequestError creates an invalid request error (400).
func NewInvalidRequestError(message string) *CacheError {
	return &CacheError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Type:       TypeInvalidRequest,
		Retryable:  false,
	}
}

// NewNotFoundError creates a not found error (404). Cache misses are not
// errors and are reported as a miss result; this type is reserved for
// absent listeners and similar addressable resources.
func NewNotFoundError(message string) *CacheError {
	return &CacheError{
		StatusCode: http.StatusNotFound,
		Message:    message,
		Type:       TypeNotFound,
		Retryable:  false,
	}
}

// NewUpstreamUnavailableError creates an upstream unavailable error (503).
// Read paths degrade to a miss instead of surfacing this; write paths
// surface it so callers know durability was not achieved.
func NewUpstreamUnavailableError(backend, message string) *CacheError {
	return &CacheError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    message,
		Type:       TypeUpstreamUnavailable,
		Backend:    backend,
		Retryable:  true,
	}
}

// NewInternalError creates an internal server error (500).
func NewInternalError(message string) *CacheError {
	return &CacheError{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
		Type:       TypeInternalError,
		Retryable:  false,
	}
}

// IsUpstreamUnavailable reports whether err is an upstream availability
// failure, the condition read paths convert into a miss.
func IsUpstreamUnavailable(err error) bool {
	var ce *CacheError
	if errors.As(err, &ce) {
		return ce.Type == TypeUpstreamUnavailable
	}
	return false
}

// IsInvalidRequest reports whether err is a client-side validation error.
func IsInvalidRequest(err error) bool {
	var ce *CacheError
	if errors.As(err, &ce) {
		return ce.Type == TypeInvalidRequest
	}
	return false
}
