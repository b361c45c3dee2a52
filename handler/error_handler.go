package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/orgkit/pkg/binder"
	"github.com/dmitrymomot/orgkit/pkg/logger"
)

// ErrorHandlerConfig configures the default error handler
type ErrorHandlerConfig struct {
	// Classify maps domain errors to HTTPError. Errors it returns unchanged
	// fall through to the built-in mapping.
	Classify func(error) error
}

// Helper functions for HTTP status code classification
func isClientError(statusCode int) bool {
	return statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError
}

// determineLogLevel maps HTTP status codes to appropriate log levels
func determineLogLevel(statusCode int) slog.Level {
	if isClientError(statusCode) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// classifyBindError turns binder failures into client errors.
func classifyBindError(err error) error {
	switch {
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		return ErrUnsupportedMediaType.WithDetail("expected application/json").Wrap(err)
	case errors.Is(err, binder.ErrFailedToParseJSON), errors.Is(err, binder.ErrFailedToParseQuery):
		return ErrBadRequest.WithDetail("malformed request").Wrap(err)
	}
	return err
}

// NewErrorHandler creates the error handler that renders every failure as a
// JSON error envelope and logs it. Client errors log at warn, server errors at error.
// Configure this once in main.go and pass to all services.
func NewErrorHandler(log *slog.Logger, cfg ErrorHandlerConfig) ErrorHandler[Context] {
	if log == nil {
		log = logger.Discard()
	}

	return func(ctx Context, err error) {
		classified := classifyBindError(err)
		if cfg.Classify != nil {
			classified = cfg.Classify(classified)
		}

		resp := JSONError(classified).(*jsonResponse)

		log.LogAttrs(ctx, determineLogLevel(resp.status), "request error",
			logger.RequestID(ctx.RequestID()),
			logger.Error(err),
			slog.Int("status_code", resp.status),
			slog.String("method", ctx.Request().Method),
			slog.String("path", ctx.Request().URL.Path),
			logger.Component("error_handler"),
		)

		if renderErr := resp.Render(ctx.ResponseWriter(), ctx.Request()); renderErr != nil {
			log.ErrorContext(ctx, "failed to render error response",
				logger.RequestID(ctx.RequestID()),
				logger.Error(renderErr),
			)
		}
	}
}
