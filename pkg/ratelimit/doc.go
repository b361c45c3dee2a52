// Package ratelimit implements fixed-window rate limiting for HTTP handlers.
//
// A FixedWindow limiter counts requests per key in a Store. MemoryStore keeps
// counters in process; RedisStore keeps them in Redis so several replicas share
// one budget. Middleware applies a limiter to a route and answers 429 with a
// Retry-After header once the budget is spent. Storage failures fail open.
//
//	limiter, err := ratelimit.NewFixedWindow(store, ratelimit.Config{Limit: 5, Window: time.Minute})
//	r.With(ratelimit.Middleware(limiter, ratelimit.ClientIP)).Post("/admin/login", h)
package ratelimit
