// Package handler provides type-safe HTTP request handling for JSON APIs.
//
// Handlers are generic functions that receive a bound request struct and return
// a Response. Wrap turns them into http.HandlerFunc values:
//
//	type GetRequest struct {
//		Name string `query:"organization_name"`
//	}
//
//	func (s *Server) get(ctx handler.Context, req GetRequest) handler.Response {
//		sum, err := s.svc.Get(ctx, req.Name)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(sum)
//	}
//
//	r.Get("/org/get", handler.Wrap(s.get,
//		handler.WithBinders[handler.Context, GetRequest](binder.Query()),
//		handler.WithErrorHandler[handler.Context, GetRequest](s.errorHandler),
//	))
//
// # Responses
//
//	handler.JSON(data)                              // 200 OK with data
//	handler.JSON(data, handler.WithJSONStatus(201)) // Custom status
//	handler.JSONError(err)                          // Error envelope
//	handler.Fail(err)                               // Classified by the ErrorHandler
//
// # Errors
//
// Every error is rendered as the same envelope:
//
//	{"error":"NotFound","detail":"organization not found","status_code":404,
//	 "timestamp":"2024-06-01T10:00:00Z","request_id":"..."}
//
// HTTPError values carry the status and the error name. Errors wrapping
// validator.ValidationErrors add an "errors" list of {field, message} pairs.
// Unknown errors become a 500 without leaking their text.
//
// NewErrorHandler builds the ErrorHandler used for binding and render failures.
// Its Classify hook maps domain errors to HTTPError values.
package handler
