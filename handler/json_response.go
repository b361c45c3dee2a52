package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrymomot/orgkit/pkg/requestid"
	"github.com/dmitrymomot/orgkit/pkg/validator"
)

// ErrorBody is the error envelope returned by every endpoint.
type ErrorBody struct {
	Error      string       `json:"error"`
	Detail     string       `json:"detail"`
	StatusCode int          `json:"status_code"`
	Timestamp  time.Time    `json:"timestamp"`
	RequestID  string       `json:"request_id,omitempty"`
	Errors     []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// jsonResponse implements Response for JSON rendering
type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if eb, ok := j.body.(*ErrorBody); ok {
		eb.StatusCode = j.status
		if eb.Timestamp.IsZero() {
			eb.Timestamp = time.Now().UTC()
		}
		if eb.RequestID == "" {
			eb.RequestID = requestid.FromContext(r.Context())
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures JSON response
type JSONOption func(*jsonResponse)

// WithJSONStatus sets custom HTTP status code
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// JSON creates a JSON response with options. Errors are rendered through JSONError.
func JSON(v any, opts ...JSONOption) Response {
	if err, ok := v.(error); ok {
		return JSONError(err, opts...)
	}

	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError creates a JSON error response.
//
// HTTPError keeps its status and detail. validator.ValidationErrors become a
// 422 listing every rejected field. Anything else is a 500 whose detail does
// not echo the underlying error.
func JSONError(err error, opts ...JSONOption) Response {
	r := &jsonResponse{}
	r.body = errorToBody(err, &r.status)

	// Apply options (can override status)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// errorToBody converts err to ErrorBody and sets the matching status.
func errorToBody(err error, status *int) *ErrorBody {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		*status = httpErr.Code
		body := &ErrorBody{Error: httpErr.Key, Detail: httpErr.Detail}
		if body.Detail == "" {
			body.Detail = http.StatusText(httpErr.Code)
		}
		body.Errors = fieldErrors(err)
		return body
	}

	if fields := fieldErrors(err); len(fields) > 0 {
		*status = http.StatusUnprocessableEntity
		return &ErrorBody{
			Error:  ErrValidation.Key,
			Detail: fields[0].Field + ": " + fields[0].Message,
			Errors: fields,
		}
	}

	*status = http.StatusInternalServerError
	return &ErrorBody{Error: ErrInternal.Key, Detail: "internal server error"}
}

func fieldErrors(err error) []FieldError {
	verrs := validator.ExtractValidationErrors(err)
	if len(verrs) == 0 {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, v := range verrs {
		out = append(out, FieldError{Field: v.Field, Message: v.Message})
	}
	return out
}

// failResponse hands its error to the ErrorHandler configured in Wrap.
type failResponse struct {
	err error
}

func (f failResponse) Render(http.ResponseWriter, *http.Request) error {
	return f.err
}

// Fail returns a Response that reports err to the ErrorHandler configured in
// Wrap, so domain failures are classified and logged in one place.
func Fail(err error) Response {
	return failResponse{err: err}
}
