// Package binder binds HTTP request data to Go structs.
//
// JSON() decodes a strict application/json body (unknown fields rejected,
// 1MB limit). Query() fills fields tagged `query:"name"` from the URL query.
// Pointer fields stay nil when the parameter is absent, so handlers can tell
// "not provided" from "empty".
//
//	type DeleteRequest struct {
//	    Name string `query:"organization_name"`
//	}
//
//	r.Delete("/org/delete", handler.Wrap(s.delete,
//	    handler.WithBinders[handler.Context, DeleteRequest](binder.Query()),
//	))
//
// # Error Handling
//
//   - ErrUnsupportedMediaType: Content type doesn't match expected type
//   - ErrMissingContentType: Missing Content-Type header
//   - ErrFailedToParseJSON: Failed to parse JSON request body
//   - ErrFailedToParseQuery: Failed to parse query parameters
package binder
