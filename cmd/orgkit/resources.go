package main

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/orgkit/pkg/httpserver"
	"github.com/dmitrymomot/orgkit/pkg/logger"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

// resources collects what run opened. Until handOff passes them to the
// server as shutdown hooks, release closes them in reverse order.
type resources struct {
	closers []closer
}

func (r *resources) add(name string, fn func(context.Context) error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

func (r *resources) release(ctx context.Context, log *slog.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(ctx); err != nil {
			log.WarnContext(ctx, "failed to release resource", slog.String("resource", c.name), logger.Error(err))
		}
	}
	r.closers = nil
}

// handOff returns the collected closers as shutdown hooks. The server runs
// hooks in reverse registration order, so teardown mirrors startup.
func (r *resources) handOff() []httpserver.Option {
	opts := make([]httpserver.Option, 0, len(r.closers))
	for _, c := range r.closers {
		opts = append(opts, httpserver.WithShutdownHook(c.name, c.fn))
	}
	r.closers = nil
	return opts
}
