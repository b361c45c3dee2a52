package connection

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/orgkit/pkg/logger"
	"github.com/dmitrymomot/orgkit/svc/organization"
)

const (
	DefaultCacheSize    = 100
	DefaultProbeTimeout = 5 * time.Second
	DefaultMaxPoolSize  = 10

	// A lease can be lost between the dial and the retain when the entry is
	// evicted or invalidated right away; Resolve retries that many times.
	maxResolveAttempts = 3
)

var errLeaseLost = errors.New("connection evicted while resolving")

// Stats describes the resolver and its cache.
type Stats struct {
	Cache        CacheStats `json:"cache"`
	Dials        uint64     `json:"dials"`
	DialFailures uint64     `json:"dial_failures"`
}

// Resolver maps organizations to database handles.
type Resolver struct {
	shared       Handle
	dialer       Dialer
	cache        *Cache
	flights      singleflight.Group
	cacheSize    int
	probeTimeout time.Duration
	logger       *slog.Logger

	dials        atomic.Uint64
	dialFailures atomic.Uint64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDialer sets the dialer used for dedicated organizations.
func WithDialer(d Dialer) Option {
	return func(r *Resolver) {
		if d != nil {
			r.dialer = d
		}
	}
}

// WithCacheSize bounds the number of cached dedicated handles.
func WithCacheSize(size int) Option {
	return func(r *Resolver) {
		if size > 0 {
			r.cacheSize = size
		}
	}
}

// WithProbeTimeout bounds every dial and ping of a dedicated database.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.probeTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver returns a resolver serving shared organizations from shared.
func NewResolver(shared Handle, opts ...Option) *Resolver {
	r := &Resolver{
		shared:       shared,
		cacheSize:    DefaultCacheSize,
		probeTimeout: DefaultProbeTimeout,
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dialer == nil {
		r.dialer = NewSchemeDialer(r.probeTimeout, DefaultMaxPoolSize)
	}
	r.logger = r.logger.With(logger.Component("connection"))
	r.cache = newCache(r.cacheSize, r.probeTimeout, r.logger)
	return r
}

// Shared returns the process-wide handle.
func (r *Resolver) Shared() Handle {
	return r.shared
}

// Resolve returns a lease on the handle backing org.
//
// Dedicated handles are dialed on first use and cached by organization ID.
// Concurrent misses share one dial, which runs to completion even if the
// caller that started it goes away. A failed dial is reported as
// organization.ErrConnectionUnavailable and never cached.
func (r *Resolver) Resolve(ctx context.Context, org *organization.Organization) (*Conn, error) {
	if org.DBMode != organization.ModeDedicated {
		return &Conn{Handle: r.shared}, nil
	}
	if org.Descriptor == nil {
		return nil, errors.Join(organization.ErrConnectionUnavailable, ErrMissingDescriptor)
	}

	fp := org.Descriptor.Fingerprint()
	for range maxResolveAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conn, err := r.attempt(ctx, org, fp)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			return conn, nil
		}
	}
	return nil, errors.Join(organization.ErrConnectionUnavailable, errLeaseLost)
}

// attempt returns a lease, or nil without error when the entry it was
// handed was evicted before it could be leased.
func (r *Resolver) attempt(ctx context.Context, org *organization.Organization, fp string) (*Conn, error) {
	gen, unpin, err := r.cache.generation(org.ID)
	if err != nil {
		return nil, errors.Join(organization.ErrConnectionUnavailable, err)
	}
	defer unpin()

	if conn, ok := r.cache.acquire(org.ID, fp, org.UpdatedAt); ok {
		return conn, nil
	}

	e, err := r.await(ctx, org, fp, gen)
	if err != nil {
		return nil, err
	}
	conn, _ := r.cache.retain(e)
	return conn, nil
}

func (r *Resolver) await(ctx context.Context, org *organization.Organization, fp string, gen uint64) (*entry, error) {
	id, desc, version := org.ID, *org.Descriptor, org.UpdatedAt

	// The generation keeps callers that start after an invalidation out of
	// a dial that can no longer reach the cache.
	key := id + "|" + fp + "|" + strconv.FormatUint(gen, 10)
	ch := r.flights.DoChan(key, func() (any, error) {
		// A flight that finished just before this one started may have cached it.
		if e, ok := r.cache.lookup(id, fp); ok {
			return e, nil
		}

		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.probeTimeout)
		defer cancel()

		h, err := r.open(dialCtx, desc)
		if err != nil {
			r.logger.WarnContext(ctx, "tenant connection unavailable",
				logger.OrgID(id),
				logger.Fingerprint(fp),
				logger.Error(err),
			)
			return nil, err
		}

		e, err := r.cache.insert(id, fp, version, gen, h)
		if err != nil {
			r.closeHandle(h)
			return nil, errors.Join(organization.ErrConnectionUnavailable, err)
		}
		r.logger.DebugContext(ctx, "tenant connection cached",
			logger.OrgID(id),
			logger.Fingerprint(fp),
			slog.String("kind", h.Kind()),
		)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entry), nil
	}
}

// open dials desc and pings the result. Failures wrap organization.ErrConnectionUnavailable.
func (r *Resolver) open(ctx context.Context, desc organization.ConnectionDescriptor) (Handle, error) {
	r.dials.Add(1)

	h, err := r.dialer.Dial(ctx, desc)
	if err != nil {
		r.dialFailures.Add(1)
		return nil, errors.Join(organization.ErrConnectionUnavailable, err)
	}
	if err := h.Ping(ctx); err != nil {
		r.dialFailures.Add(1)
		r.closeHandle(h)
		return nil, errors.Join(organization.ErrConnectionUnavailable, err)
	}
	return h, nil
}

func (r *Resolver) closeHandle(h Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), r.probeTimeout)
	defer cancel()
	if err := h.Close(ctx); err != nil {
		r.logger.Warn("failed to close tenant connection", logger.Error(err))
	}
}

// Open dials and pings desc without caching the handle. The caller owns the
// handle and must close it. The probe timeout bounds the attempt.
func (r *Resolver) Open(ctx context.Context, desc organization.ConnectionDescriptor) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()
	return r.open(ctx, desc)
}

// Probe checks that desc is reachable.
func (r *Resolver) Probe(ctx context.Context, desc organization.ConnectionDescriptor) error {
	h, err := r.Open(ctx, desc)
	if err != nil {
		return err
	}
	r.closeHandle(h)
	return nil
}

// Invalidate drops the cached handle of an organization. Callers holding a
// lease keep using it until they release it. A dial in flight for the
// organization when Invalidate is called does not reach the cache.
func (r *Resolver) Invalidate(ctx context.Context, orgID string) {
	if r.cache.remove(orgID) {
		r.logger.DebugContext(ctx, "tenant connection invalidated", logger.OrgID(orgID))
	}
}

func (r *Resolver) Stats() Stats {
	return Stats{
		Cache:        r.cache.Stats(),
		Dials:        r.dials.Load(),
		DialFailures: r.dialFailures.Load(),
	}
}

// Close closes every idle dedicated handle; leased ones close on release.
// Further dedicated resolves fail. The shared handle is left to its owner.
func (r *Resolver) Close() error {
	return r.cache.close()
}
