// Package logger builds *slog.Logger instances with functional options and
// injects request-scoped values from context.Context into every record.
//
// New picks a text or JSON handler, applies static attributes and wraps the
// handler with LogHandlerDecorator, which runs the registered ContextExtractor
// callbacks on each Handle call. Attribute helpers in attr.go keep key names
// consistent across services.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment("production", "orgkit"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "organization created", logger.OrgName("Acme"))
package logger
