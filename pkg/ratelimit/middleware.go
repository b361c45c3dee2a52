package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/orgkit/pkg/logger"
)

// LimitHandler writes the response once the limit is reached.
type LimitHandler func(w http.ResponseWriter, r *http.Request, result *Result)

// MiddlewareOption configures middleware behavior.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	onLimitReached LimitHandler
	logger         *slog.Logger
	now            func() time.Time
}

// WithOnLimitReached sets a custom handler for rate limit exceeded.
func WithOnLimitReached(fn LimitHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.onLimitReached = fn
		}
	}
}

// WithLogger logs storage errors that made the middleware fail open.
func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func defaultLimitHandler(w http.ResponseWriter, _ *http.Request, _ *Result) {
	http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
}

// Middleware enforces limiter on every request keyed by keyFunc.
// Requests with an empty key or a failing store pass through.
func Middleware(limiter Limiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if limiter == nil || keyFunc == nil {
		panic("ratelimit.Middleware: limiter and keyFunc are required")
	}

	cfg := &middlewareConfig{
		onLimitReached: defaultLimitHandler,
		logger:         logger.Discard(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				cfg.logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					logger.Component("ratelimit"),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := int(result.RetryAfter(cfg.now()).Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
				cfg.onLimitReached(w, r, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
