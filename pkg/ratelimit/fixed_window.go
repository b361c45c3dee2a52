package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Config configures a FixedWindow limiter.
type Config struct {
	Limit  int
	Window time.Duration
	// Prefix namespaces keys so several limiters can share one store.
	Prefix string
}

// FixedWindow allows Limit requests per key in each Window.
type FixedWindow struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock overrides the clock used to compute reset times.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindow) {
		if now != nil {
			l.now = now
		}
	}
}

// NewFixedWindow creates a limiter backed by store.
func NewFixedWindow(store Store, cfg Config, opts ...Option) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, cfg.Limit)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, cfg.Window)
	}

	l := &FixedWindow{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow consumes one slot for key.
func (l *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	current, ttl, err := l.store.IncrementAndGet(ctx, l.key(key), 1, l.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to increment counter: %w", err)
	}
	return l.result(current, ttl, current <= int64(l.cfg.Limit)), nil
}

// Status reports the current state for key without consuming a slot.
func (l *FixedWindow) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	current, ttl, err := l.store.Get(ctx, l.key(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read counter: %w", err)
	}
	return l.result(current, ttl, current < int64(l.cfg.Limit)), nil
}

// Reset clears the counter for key.
func (l *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return l.store.Delete(ctx, l.key(key))
}

func (l *FixedWindow) key(key string) string {
	if l.cfg.Prefix == "" {
		return key
	}
	return l.cfg.Prefix + ":" + key
}

func (l *FixedWindow) result(current int64, ttl time.Duration, allowed bool) *Result {
	if ttl <= 0 {
		ttl = l.cfg.Window
	}
	return &Result{
		Allowed:   allowed,
		Limit:     l.cfg.Limit,
		Remaining: max(l.cfg.Limit-int(current), 0),
		ResetAt:   l.now().Add(ttl),
	}
}
