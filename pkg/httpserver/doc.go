// Package httpserver runs an http.Handler with graceful shutdown.
//
// Run blocks until the context is cancelled, SIGINT/SIGTERM arrives or the
// listener fails. On the way out the server stops accepting requests, drains
// in-flight ones within the shutdown timeout and then runs the registered
// shutdown hooks in reverse order, so resources opened last are released first:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithShutdownHook("tenant connections", resolver.Close),
//	)
//	if err := srv.Run(ctx, router); err != nil { ... }
//
// HealthCheckHandler serves liveness and readiness probes from named checks.
package httpserver
