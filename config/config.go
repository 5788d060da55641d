package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/gravyprompts/discovery/auth"
	"github.com/gravyprompts/discovery/cache"
	"github.com/gravyprompts/discovery/observe"
	"github.com/gravyprompts/discovery/resilience"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
)

// Config is the full service configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Cache     CacheConfig     `yaml:"cache"`
	Store     StoreConfig     `yaml:"store"`
	AWS       AWSSettings     `yaml:"aws"`
	Search    SearchConfig    `yaml:"search"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Health    HealthConfig    `yaml:"health"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Observe   observe.Config  `yaml:"observe"`
}

// ServiceConfig identifies the service and its listener.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig selects and sizes the result cache.
type CacheConfig struct {
	// Backend is memory (per instance) or dynamodb (shared).
	Backend       string        `yaml:"backend"`
	Capacity      int           `yaml:"capacity"`
	MaxBytes      int64         `yaml:"max_bytes"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	MaxTTL        time.Duration `yaml:"max_ttl"`
	EvictFraction float64       `yaml:"evict_fraction"`

	// Table, Timeout, Breaker and Throttle apply to the dynamodb backend.
	Table    string                          `yaml:"table"`
	Timeout  time.Duration                   `yaml:"timeout"`
	Breaker  resilience.CircuitBreakerConfig `yaml:"breaker"`
	Throttle resilience.RateLimiterConfig    `yaml:"throttle"`
}

// Policy returns the cache policy described by c.
func (c CacheConfig) Policy() cache.Policy {
	return cache.Policy{
		DefaultTTL:    c.DefaultTTL,
		MaxTTL:        c.MaxTTL,
		Capacity:      c.Capacity,
		MaxBytes:      c.MaxBytes,
		EvictFraction: c.EvictFraction,
	}
}

// StoreConfig selects the template store.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Table   string `yaml:"table"`

	// Seeds are template files loaded, in order, into the memory backend.
	Seeds []SeedSource `yaml:"seeds"`
}

// SeedSource is one seed file. Files ending in .csv are read as CSV with a
// header row; anything else is a JSON array. Format is the template format
// for records that name none.
type SeedSource struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// AWSSettings configures the AWS SDK. Empty fields fall back to the SDK's
// default chain.
type AWSSettings struct {
	Region   string `yaml:"region"`
	Profile  string `yaml:"profile"`
	Endpoint string `yaml:"endpoint"`

	// Static credentials, mostly for DynamoDB Local.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// SearchConfig bounds search requests.
type SearchConfig struct {
	// MaxLimit caps the page size of every filter.
	MaxLimit int `yaml:"max_limit"`

	// CacheTTL is the lifetime of cached results. Zero uses the cache default.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig enables per-caller limits.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	resilience.KeyedLimiterConfig `yaml:",inline"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`

	// Secret verifies HS256 tokens. When empty, RS256 keys are fetched from
	// JWKSURL, or from the issuer's well-known location.
	Secret       string        `yaml:"secret"`
	JWKSURL      string        `yaml:"jwks_url"`
	JWKSCacheTTL time.Duration `yaml:"jwks_cache_ttl"`

	auth.JWTConfig `yaml:",inline"`
}

// KeySetURL returns the JWKS location to use.
func (a AuthConfig) KeySetURL() string {
	if a.JWKSURL != "" {
		return a.JWKSURL
	}
	return auth.JWKSURL(a.Issuer)
}

// HealthConfig tunes the health checks.
type HealthConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	DisableCacheProbe bool          `yaml:"disable_cache_probe"`
	MinHitRate        float64       `yaml:"min_hit_rate"`
	MaxHeapMB         float64       `yaml:"max_heap_mb"`
}

// SecretsConfig configures secretref resolution.
type SecretsConfig struct {
	// AllowEmpty accepts references that resolve to an empty value.
	AllowEmpty bool `yaml:"allow_empty"`

	// FileDir confines secretref:file references to one directory.
	FileDir string `yaml:"file_dir"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	def := cache.DefaultPolicy()

	setDefault(&c.Service.Name, "template-discovery")
	setDefault(&c.Service.Addr, ":8080")
	setDefault(&c.Service.ShutdownTimeout, 10*time.Second)

	setDefault(&c.Cache.Backend, BackendMemory)
	setDefault(&c.Cache.Capacity, def.Capacity)
	setDefault(&c.Cache.MaxBytes, def.MaxBytes)
	setDefault(&c.Cache.DefaultTTL, def.DefaultTTL)
	setDefault(&c.Cache.MaxTTL, def.MaxTTL)
	setDefault(&c.Cache.EvictFraction, def.EvictFraction)
	setDefault(&c.Cache.Timeout, 250*time.Millisecond)

	setDefault(&c.Store.Backend, BackendMemory)

	setDefault(&c.Search.MaxLimit, 100)

	setDefault(&c.Health.Timeout, 5*time.Second)

	setDefault(&c.Observe.ServiceName, c.Service.Name)
	setDefault(&c.Observe.Version, c.Service.Version)
	if c.Observe.Logging.Enabled {
		setDefault(&c.Observe.Logging.Level, "info")
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	backends := []string{BackendMemory, BackendDynamoDB}
	if !slices.Contains(backends, c.Cache.Backend) {
		return fmt.Errorf("%w: cache %q", ErrUnknownBackend, c.Cache.Backend)
	}
	if !slices.Contains(backends, c.Store.Backend) {
		return fmt.Errorf("%w: store %q", ErrUnknownBackend, c.Store.Backend)
	}
	if c.Cache.Backend == BackendDynamoDB && c.Cache.Table == "" {
		return fmt.Errorf("%w: cache.table is required for dynamodb", ErrInvalidConfig)
	}
	if c.Store.Backend == BackendDynamoDB && c.Store.Table == "" {
		return fmt.Errorf("%w: store.table is required for dynamodb", ErrInvalidConfig)
	}
	if c.Store.Backend == BackendDynamoDB && len(c.Store.Seeds) > 0 {
		return fmt.Errorf("%w: store.seeds only applies to the memory backend", ErrInvalidConfig)
	}
	for i, src := range c.Store.Seeds {
		if src.Path == "" {
			return fmt.Errorf("%w: store.seeds[%d].path is required", ErrInvalidConfig, i)
		}
	}

	if c.Cache.Capacity < 0 || c.Cache.MaxBytes < 0 {
		return fmt.Errorf("%w: cache capacity and max_bytes must not be negative", ErrInvalidConfig)
	}
	if c.Cache.EvictFraction <= 0 || c.Cache.EvictFraction > 1 {
		return fmt.Errorf("%w: cache.evict_fraction must be in (0, 1], got %v", ErrInvalidConfig, c.Cache.EvictFraction)
	}
	if c.Cache.MaxTTL > 0 && c.Cache.DefaultTTL > c.Cache.MaxTTL {
		return fmt.Errorf("%w: cache.default_ttl %v exceeds max_ttl %v", ErrInvalidConfig, c.Cache.DefaultTTL, c.Cache.MaxTTL)
	}
	if c.Search.MaxLimit < 0 {
		return fmt.Errorf("%w: search.max_limit must not be negative", ErrInvalidConfig)
	}
	if c.Search.CacheTTL < 0 {
		return fmt.Errorf("%w: search.cache_ttl must not be negative", ErrInvalidConfig)
	}
	if c.RateLimit.Enabled && c.RateLimit.Rate < 0 {
		return fmt.Errorf("%w: rate_limit.rate must not be negative", ErrInvalidConfig)
	}

	if c.Auth.Enabled && c.Auth.Secret == "" && c.Auth.JWKSURL == "" && c.Auth.Issuer == "" {
		return fmt.Errorf("%w: auth needs a secret, jwks_url or issuer", ErrInvalidConfig)
	}

	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return fmt.Errorf("%w: aws access_key_id and secret_access_key must be set together", ErrInvalidConfig)
	}

	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
	}
	return nil
}

// UsesAWS reports whether any backend needs an AWS client.
func (c *Config) UsesAWS() bool {
	return c.Cache.Backend == BackendDynamoDB || c.Store.Backend == BackendDynamoDB
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
