// Package requestid propagates request correlation identifiers.
//
// Middleware reuses a well-formed X-Request-ID header or generates a UUIDv4,
// stores it in the request context and echoes it back in the response. Core
// services receive the identifier through context.Context only; LoggerExtractor
// plugs it into pkg/logger so every record written with that context carries
// a request_id attribute.
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r.Use(requestid.Middleware)
package requestid
