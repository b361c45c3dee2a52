package handler

import (
	"errors"
	"net/http"
)

// Package-level errors for common failure scenarios
var (
	// ErrNilResponse indicates a handler returned nil instead of a Response
	ErrNilResponse = errors.New("handler returned nil response")
)

// HTTPError is an error with an HTTP status code and a machine readable key.
// Detail is shown to the client; the wrapped cause is not.
type HTTPError struct {
	Code   int    // HTTP status code
	Key    string // Error name rendered in the "error" field (e.g. "NotFound")
	Detail string
	cause  error
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	if e.Detail != "" {
		return e.Key + ": " + e.Detail
	}
	return e.Key
}

func (e HTTPError) Unwrap() error {
	return e.cause
}

// WithDetail returns a copy carrying a client-facing message.
func (e HTTPError) WithDetail(detail string) HTTPError {
	e.Detail = detail
	return e
}

// Wrap returns a copy that wraps cause for errors.Is and errors.As.
func (e HTTPError) Wrap(cause error) HTTPError {
	e.cause = cause
	return e
}

var (
	ErrBadRequest           = HTTPError{Code: http.StatusBadRequest, Key: "BadRequest"}
	ErrUnauthorized         = HTTPError{Code: http.StatusUnauthorized, Key: "Unauthorized"}
	ErrNotFound             = HTTPError{Code: http.StatusNotFound, Key: "NotFound"}
	ErrConflict             = HTTPError{Code: http.StatusConflict, Key: "Conflict"}
	ErrUnsupportedMediaType = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "UnsupportedMediaType"}
	ErrValidation           = HTTPError{Code: http.StatusUnprocessableEntity, Key: "ValidationError"}
	ErrTooManyRequests      = HTTPError{Code: http.StatusTooManyRequests, Key: "TooManyRequests"}
	ErrInternal             = HTTPError{Code: http.StatusInternalServerError, Key: "InternalServerError"}
	ErrServiceUnavailable   = HTTPError{Code: http.StatusServiceUnavailable, Key: "ServiceUnavailable"}
)
