package organization

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/orgkit/handler"
	"github.com/dmitrymomot/orgkit/pkg/jwt"
	"github.com/dmitrymomot/orgkit/pkg/logger"
	"github.com/dmitrymomot/orgkit/pkg/ratelimit"
	"github.com/dmitrymomot/orgkit/svc/tenant"
)

// Server serves the organization API.
type Server struct {
	svc          tenant.Service
	orgLimiter   ratelimit.Limiter
	loginLimiter ratelimit.Limiter
	logger       *slog.Logger
	now          func() time.Time
	errorHandler handler.ErrorHandler[handler.Context]
}

// Option configures the Server.
type Option func(*Server)

// WithOrgLimiter limits the /org routes per client IP.
func WithOrgLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) {
		s.orgLimiter = l
	}
}

// WithLoginLimiter limits /admin/login per client IP.
func WithLoginLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) {
		s.loginLimiter = l
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used for token expiry hints.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer creates the API server.
// It panics on a missing service to fail fast during initialization.
func NewServer(svc tenant.Service, opts ...Option) *Server {
	if svc == nil {
		panic("organization: tenant.Service is required")
	}

	s := &Server{
		svc:    svc,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("organization_api"))
	s.errorHandler = handler.NewErrorHandler(s.logger, handler.ErrorHandlerConfig{Classify: classify})
	return s
}

// Handle returns the routes mounted on a chi router.
func (s *Server) Handle() http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		s.limit(r, s.orgLimiter)

		r.Post("/org/create", handler.Wrap(s.create,
			handler.WithBinders[handler.Context, CreateRequest](bindJSON),
			handler.WithErrorHandler[handler.Context, CreateRequest](s.errorHandler),
		))
		r.Get("/org/get", handler.Wrap(s.get,
			handler.WithBinders[handler.Context, GetRequest](bindQuery),
			handler.WithErrorHandler[handler.Context, GetRequest](s.errorHandler),
		))

		r.Group(func(r chi.Router) {
			r.Use(jwt.Middleware(jwt.MiddlewareConfig{ErrorHandler: s.unauthorized}))

			r.Put("/org/update", handler.Wrap(s.update,
				handler.WithBinders[handler.Context, UpdateRequest](bindJSON),
				handler.WithErrorHandler[handler.Context, UpdateRequest](s.errorHandler),
			))
			r.Delete("/org/delete", handler.Wrap(s.delete,
				handler.WithBinders[handler.Context, DeleteRequest](bindQuery),
				handler.WithErrorHandler[handler.Context, DeleteRequest](s.errorHandler),
			))
		})
	})

	r.Group(func(r chi.Router) {
		s.limit(r, s.loginLimiter)

		r.Post("/admin/login", handler.Wrap(s.login,
			handler.WithBinders[handler.Context, LoginRequest](bindJSON),
			handler.WithErrorHandler[handler.Context, LoginRequest](s.errorHandler),
		))
	})

	r.Get("/stats", handler.Wrap(s.stats,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
	))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = handler.JSONError(handler.ErrNotFound.WithDetail("route not found")).Render(w, r)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = handler.JSONError(handler.HTTPError{Code: http.StatusMethodNotAllowed, Key: "MethodNotAllowed"}).Render(w, r)
	})

	return r
}

func (s *Server) limit(r chi.Router, l ratelimit.Limiter) {
	if l == nil {
		return
	}
	r.Use(ratelimit.Middleware(l, ratelimit.ClientIP,
		ratelimit.WithOnLimitReached(s.tooManyRequests),
		ratelimit.WithLogger(s.logger),
	))
}

func (s *Server) tooManyRequests(w http.ResponseWriter, r *http.Request, _ *ratelimit.Result) {
	s.logger.WarnContext(r.Context(), "rate limit exceeded",
		slog.String("path", r.URL.Path),
		slog.String("client_ip", ratelimit.ClientIP(r)),
	)
	_ = handler.JSONError(handler.ErrTooManyRequests.WithDetail("rate limit exceeded, retry later")).Render(w, r)
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler(handler.NewContext(w, r), handler.ErrUnauthorized.WithDetail("missing or malformed bearer token").Wrap(err))
}

// success is the body of operations that return no resource.
type success struct {
	Success bool `json:"success"`
}
