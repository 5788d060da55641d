package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/otel/metric"

	"github.com/gravyprompts/discovery/auth"
	"github.com/gravyprompts/discovery/cache"
	"github.com/gravyprompts/discovery/config"
	"github.com/gravyprompts/discovery/health"
	"github.com/gravyprompts/discovery/observe"
	"github.com/gravyprompts/discovery/resilience"
	"github.com/gravyprompts/discovery/router"
	"github.com/gravyprompts/discovery/store"
)

// DynamoClient is the DynamoDB API used by the store and the shared cache.
// *dynamodb.Client satisfies it.
type DynamoClient interface {
	store.DynamoClient
	cache.DynamoClient
}

// Option customizes New.
type Option func(*options)

type options struct {
	dynamo DynamoClient
	now    func() time.Time
}

// WithDynamoClient uses client instead of one built from the AWS config.
func WithDynamoClient(client DynamoClient) Option {
	return func(o *options) { o.dynamo = client }
}

// App is a wired discovery instance.
type App struct {
	Config        *config.Config
	Observer      observe.Observer
	Logger        observe.Logger
	Cache         cache.Cache
	Store         store.Store
	Router        *router.Router
	Health        *health.Aggregator
	Authenticator auth.Authenticator

	// Limiter is nil when rate limiting is disabled.
	Limiter *resilience.KeyedLimiter

	gauges metric.Registration
}

// New builds an App from cfg. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("app: observer: %w", err)
	}
	a := &App{Config: cfg, Observer: obs, Logger: obs.Logger()}

	if err := a.build(ctx, o); err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	a.Logger.Info(ctx, "discovery ready",
		observe.Field{Key: "cache_backend", Value: cfg.Cache.Backend},
		observe.Field{Key: "store_backend", Value: cfg.Store.Backend},
		observe.Field{Key: "auth", Value: cfg.Auth.Enabled},
		observe.Field{Key: "rate_limit", Value: cfg.RateLimit.Enabled},
	)
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	cfg := a.Config

	mw, err := observe.MiddlewareFromObserver(a.Observer)
	if err != nil {
		return fmt.Errorf("app: middleware: %w", err)
	}

	if cfg.UsesAWS() && o.dynamo == nil {
		awsCfg, err := cfg.AWSConfig(ctx)
		if err != nil {
			return err
		}
		o.dynamo = dynamodb.NewFromConfig(awsCfg)
	}

	switch cfg.Cache.Backend {
	case config.BackendDynamoDB:
		a.Cache = cache.NewDynamoCache(o.dynamo, cache.DynamoCacheConfig{
			Table:    cfg.Cache.Table,
			Policy:   cfg.Cache.Policy(),
			Timeout:  cfg.Cache.Timeout,
			Breaker:  cfg.Cache.Breaker,
			Throttle: cfg.Cache.Throttle,
			Logger:   a.Logger,
		})
	default:
		a.Cache = cache.NewMemoryCache(cfg.Cache.Policy())
	}

	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		a.Store = store.NewDynamoStore(o.dynamo, cfg.Store.Table)
	default:
		mem := store.NewMemoryStore()
		if len(cfg.Store.Seeds) > 0 {
			seeded, report, err := LoadSeed(o.now(), cfg.Store.Seeds...)
			if err != nil {
				return err
			}
			for _, t := range seeded {
				mem.Put(t)
			}
			a.Logger.Info(ctx, "seed templates loaded",
				observe.Field{Key: "files", Value: len(cfg.Store.Seeds)},
				observe.Field{Key: "total", Value: report.Total},
				observe.Field{Key: "unique", Value: report.Unique},
				observe.Field{Key: "duplicate_content", Value: len(report.Content)},
			)
		}
		a.Store = mem
	}

	rc := router.Config{
		Cache:      a.Cache,
		CacheTTL:   cfg.Search.CacheTTL,
		MaxLimit:   cfg.Search.MaxLimit,
		Middleware: mw,
		Logger:     a.Logger,
	}
	if cfg.RateLimit.Enabled {
		a.Limiter = resilience.NewKeyedLimiter(cfg.RateLimit.KeyedLimiterConfig)
		rc.Limiter = a.Limiter
	}
	a.Router = router.New(a.Store, rc)

	a.gauges, err = observe.RegisterCacheGauges(a.Observer.Meter(), "templates", func() observe.CacheStats {
		return a.Cache.Metrics().Stats()
	})
	if err != nil {
		return fmt.Errorf("app: cache gauges: %w", err)
	}

	a.Health = health.NewAggregator(health.AggregatorConfig{Timeout: cfg.Health.Timeout, Logger: a.Logger})
	a.Health.Register(health.NewStoreChecker(a.Store))
	cc := health.CacheCheckerConfig{
		Probe:      !cfg.Health.DisableCacheProbe,
		MinHitRate: cfg.Health.MinHitRate,
	}
	if cfg.Cache.Backend == config.BackendMemory {
		cc.MaxMemoryMB = float64(cfg.Cache.MaxBytes) / (1024 * 1024)
	}
	a.Health.Register(health.NewCacheChecker(a.Cache, cc))
	a.Health.Register(health.NewMemoryChecker(health.MemoryCheckerConfig{MaxHeapMB: cfg.Health.MaxHeapMB}))

	if cfg.Auth.Enabled {
		var keys auth.KeyProvider
		if cfg.Auth.Secret != "" {
			keys = auth.NewStaticKeyProvider([]byte(cfg.Auth.Secret))
		} else {
			keys = auth.NewJWKSKeyProvider(auth.JWKSConfig{
				URL:      cfg.Auth.KeySetURL(),
				CacheTTL: cfg.Auth.JWKSCacheTTL,
			})
		}
		a.Authenticator = auth.NewJWTAuthenticator(cfg.Auth.JWTConfig, keys)
	}
	return nil
}

// Authenticate resolves the caller from request headers and attaches the
// identity to ctx. Failed or missing credentials yield the anonymous
// identity.
func (a *App) Authenticate(ctx context.Context, headers map[string][]string) context.Context {
	ctx = auth.WithHeaders(ctx, headers)
	return auth.WithIdentity(ctx, auth.Resolve(ctx, a.Authenticator, headers, a.Logger))
}

// Close stops exporting telemetry.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.gauges != nil {
		errs = append(errs, a.gauges.Unregister())
	}
	errs = append(errs, a.Observer.Shutdown(ctx))
	return errors.Join(errs...)
}
