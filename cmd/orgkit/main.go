package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/orgkit/modules/organization"
	"github.com/dmitrymomot/orgkit/pkg/clientip"
	"github.com/dmitrymomot/orgkit/pkg/config"
	"github.com/dmitrymomot/orgkit/pkg/httpserver"
	"github.com/dmitrymomot/orgkit/pkg/logger"
	"github.com/dmitrymomot/orgkit/pkg/mongo"
	"github.com/dmitrymomot/orgkit/pkg/password"
	"github.com/dmitrymomot/orgkit/pkg/ratelimit"
	"github.com/dmitrymomot/orgkit/pkg/redis"
	"github.com/dmitrymomot/orgkit/pkg/requestid"
	"github.com/dmitrymomot/orgkit/pkg/secrets"
	"github.com/dmitrymomot/orgkit/svc/authgate"
	"github.com/dmitrymomot/orgkit/svc/connection"
	orgs "github.com/dmitrymomot/orgkit/svc/organization"
	"github.com/dmitrymomot/orgkit/svc/tenant"
)

type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppName string `env:"APP_NAME" envDefault:"orgkit"`

	OrgCollection string `env:"ORG_COLLECTION" envDefault:"organizations"`

	JWTSecret  string        `env:"JWT_SECRET,required"`
	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"168h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`

	ConnCacheSize   int           `env:"TENANT_CONN_CACHE_SIZE" envDefault:"100"`
	ProbeTimeout    time.Duration `env:"TENANT_PROBE_TIMEOUT" envDefault:"5s"`
	TenantMaxPool   int           `env:"TENANT_MAX_POOL_SIZE" envDefault:"10"`
	HealthTimeout   time.Duration `env:"HEALTHCHECK_TIMEOUT" envDefault:"3s"`
	OrgRateLimit    int           `env:"RATE_LIMIT_ORG_PER_MIN" envDefault:"10"`
	LoginRateLimit  int           `env:"RATE_LIMIT_LOGIN_PER_MIN" envDefault:"5"`
	RateLimitPrefix string        `env:"RATE_LIMIT_PREFIX" envDefault:"orgkit:ratelimit"`

	// TenantSecretKey seals connection URIs at rest when set (32 bytes, hex or base64).
	TenantSecretKey string   `env:"TENANT_SECRET_KEY"`
	ClientIPHeaders []string `env:"CLIENT_IP_HEADERS" envSeparator:"," envDefault:"CF-Connecting-IP,X-Forwarded-For,X-Real-IP"`

	Mongo mongo.Config
	HTTP  httpserver.Config
	Redis redis.Config
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		slog.Error("failed to load config", logger.Error(err))
		os.Exit(1)
	}

	log := logger.New(
		logger.WithEnvironment(cfg.AppEnv, cfg.AppName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("orgkit stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log *slog.Logger) (err error) {
	var res resources
	defer func() {
		if err != nil {
			res.release(context.WithoutCancel(ctx), log)
		}
	}()

	client, err := mongo.New(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	res.add("mongo", client.Disconnect)
	db := client.Database(cfg.Mongo.Database)

	var regOpts []orgs.RegistryOption
	if cfg.TenantSecretKey != "" {
		key, err := secrets.ParseKey(cfg.TenantSecretKey)
		if err != nil {
			return err
		}
		cipher, err := secrets.New(key)
		if err != nil {
			return err
		}
		regOpts = append(regOpts, orgs.WithSealer(cipher))
	} else {
		log.Warn("TENANT_SECRET_KEY is not set, connection URIs are stored in plaintext")
	}

	registry := orgs.NewMongoRegistry(db, cfg.OrgCollection, regOpts...)
	if err := registry.EnsureIndexes(ctx); err != nil {
		return err
	}

	resolver := connection.NewResolver(connection.NewSharedMongoHandle(db),
		connection.WithDialer(connection.NewSchemeDialer(cfg.ProbeTimeout, cfg.TenantMaxPool)),
		connection.WithCacheSize(cfg.ConnCacheSize),
		connection.WithProbeTimeout(cfg.ProbeTimeout),
		connection.WithLogger(log),
	)
	res.add("tenant_connections", func(context.Context) error { return resolver.Close() })

	hasher, err := password.NewHasher(password.WithCost(cfg.BcryptCost))
	if err != nil {
		return err
	}
	gate, err := authgate.New([]byte(cfg.JWTSecret), authgate.WithTTL(cfg.JWTTTL))
	if err != nil {
		return err
	}

	svc := tenant.NewService(registry, resolver, hasher, gate,
		tenant.WithLogger(log),
		tenant.WithControlDatabase(cfg.Mongo.Database),
	)

	checks := []httpserver.Check{{Name: "mongo", Fn: mongo.Healthcheck(client)}}

	var store ratelimit.Store
	if cfg.Redis.Enabled() {
		rc, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		res.add("redis", func(context.Context) error { return rc.Close() })
		store = ratelimit.NewRedisStore(rc, cfg.RateLimitPrefix)
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rc)})
	} else {
		mem := ratelimit.NewMemoryStore()
		res.add("ratelimit_store", func(context.Context) error { return mem.Close() })
		store = mem
	}

	orgLimiter, err := ratelimit.NewFixedWindow(store, ratelimit.Config{Limit: cfg.OrgRateLimit, Window: time.Minute, Prefix: "org"})
	if err != nil {
		return err
	}
	loginLimiter, err := ratelimit.NewFixedWindow(store, ratelimit.Config{Limit: cfg.LoginRateLimit, Window: time.Minute, Prefix: "login"})
	if err != nil {
		return err
	}

	api := organization.NewServer(svc,
		organization.WithOrgLimiter(orgLimiter),
		organization.WithLoginLimiter(loginLimiter),
		organization.WithLogger(log),
	)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware(clientip.New(cfg.ClientIPHeaders...)))
	r.Get("/healthz", httpserver.HealthCheckHandler(log, cfg.HealthTimeout, checks...))
	r.Mount("/", api.Handle())

	opts := append([]httpserver.Option{httpserver.WithLogger(log)}, res.handOff()...)
	return httpserver.NewFromConfig(cfg.HTTP, opts...).Run(ctx, r)
}
