package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravyprompts/discovery/cache"
	"github.com/gravyprompts/discovery/secret"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "template-discovery", c.Service.Name)
	assert.Equal(t, ":8080", c.Service.Addr)
	assert.Equal(t, BackendMemory, c.Cache.Backend)
	assert.Equal(t, BackendMemory, c.Store.Backend)
	assert.Equal(t, cache.DefaultPolicy(), c.Cache.Policy())
	assert.Equal(t, 100, c.Search.MaxLimit)
	assert.Equal(t, 5*time.Second, c.Health.Timeout)
	assert.Equal(t, "template-discovery", c.Observe.ServiceName)
	require.NoError(t, c.Validate())
}

func TestParse_FullDocument(t *testing.T) {
	t.Setenv("TEMPLATES_TABLE", "templates-prod")
	t.Setenv("CACHE_CAPACITY", "250")

	c, err := Parse([]byte(`
service:
  name: discovery
  version: 1.2.3
cache:
  backend: dynamodb
  table: ${CACHE_TABLE:-discovery-cache}
  capacity: ${CACHE_CAPACITY}
  default_ttl: 2m
  breaker:
    max_failures: 3
    reset_timeout: 10s
  throttle:
    rate: 200
    burst: 50
store:
  backend: dynamodb
  table: ${TEMPLATES_TABLE}
aws:
  region: us-east-1
search:
  max_limit: 50
  cache_ttl: 30s
rate_limit:
  enabled: true
  rate: 2
  burst: 4
  actions:
    search:
      rate: 10
      burst: 20
auth:
  enabled: true
  issuer: https://cognito-idp.us-east-1.amazonaws.com/pool
  audience: client-1
  token_use: id
observe:
  logging:
    enabled: true
`))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "discovery-cache", c.Cache.Table)
	assert.Equal(t, 250, c.Cache.Capacity)
	assert.Equal(t, 2*time.Minute, c.Cache.DefaultTTL)
	assert.Equal(t, time.Hour, c.Cache.MaxTTL, "unset fields keep defaults")
	assert.Equal(t, 3, c.Cache.Breaker.MaxFailures)
	assert.Equal(t, 10*time.Second, c.Cache.Breaker.ResetTimeout)
	assert.Equal(t, 200.0, c.Cache.Throttle.Rate)
	assert.Equal(t, "templates-prod", c.Store.Table)
	assert.Equal(t, 50, c.Search.MaxLimit)
	assert.Equal(t, 30*time.Second, c.Search.CacheTTL)
	assert.True(t, c.RateLimit.Enabled)
	assert.Equal(t, 2.0, c.RateLimit.Rate)
	assert.Equal(t, 20, c.RateLimit.Actions["search"].Burst)
	assert.Equal(t, "client-1", c.Auth.Audience)
	assert.Equal(t, "id", c.Auth.TokenUse)
	assert.Equal(t, "https://cognito-idp.us-east-1.amazonaws.com/pool/.well-known/jwks.json", c.Auth.KeySetURL())
	assert.Equal(t, "discovery", c.Observe.ServiceName)
	assert.Equal(t, "1.2.3", c.Observe.Version)
	assert.Equal(t, "info", c.Observe.Logging.Level)
	assert.True(t, c.UsesAWS())
}

func TestParse_SeedSources(t *testing.T) {
	c, err := Parse([]byte(`
store:
  seeds:
    - path: seeds/curated.json
    - path: seeds/legacy.csv
      format: plain
`))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, []SeedSource{
		{Path: "seeds/curated.json"},
		{Path: "seeds/legacy.csv", Format: "plain"},
	}, c.Store.Seeds)
}

func TestParse_MissingEnvFails(t *testing.T) {
	_, err := Parse([]byte("store:\n  table: ${DISCOVERY_UNSET_TABLE}\n"))
	require.ErrorIs(t, err, secret.ErrMissingEnv)
	assert.Contains(t, err.Error(), "store.table")
}

func TestParse_QuotedValueStaysString(t *testing.T) {
	t.Setenv("VERSION", "2")
	c, err := Parse([]byte(`service: {version: "${VERSION}"}`))
	require.NoError(t, err)
	assert.Equal(t, "2", c.Service.Version)
}

func TestParse_Empty(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("cache: [unterminated"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "redis" }, ErrUnknownBackend},
		{"unknown store backend", func(c *Config) { c.Store.Backend = "postgres" }, ErrUnknownBackend},
		{"dynamodb cache without table", func(c *Config) { c.Cache.Backend = BackendDynamoDB }, ErrInvalidConfig},
		{"dynamodb store without table", func(c *Config) { c.Store.Backend = BackendDynamoDB }, ErrInvalidConfig},
		{"seeds with dynamodb", func(c *Config) {
			c.Store.Backend = BackendDynamoDB
			c.Store.Table = "t"
			c.Store.Seeds = []SeedSource{{Path: "seed.json"}}
		}, ErrInvalidConfig},
		{"seed without path", func(c *Config) {
			c.Store.Seeds = []SeedSource{{Path: "seed.json"}, {Format: "plain"}}
		}, ErrInvalidConfig},
		{"negative capacity", func(c *Config) { c.Cache.Capacity = -1 }, ErrInvalidConfig},
		{"evict fraction", func(c *Config) { c.Cache.EvictFraction = 1.5 }, ErrInvalidConfig},
		{"ttl above max", func(c *Config) { c.Cache.DefaultTTL = 2 * time.Hour }, ErrInvalidConfig},
		{"negative max limit", func(c *Config) { c.Search.MaxLimit = -1 }, ErrInvalidConfig},
		{"auth without keys", func(c *Config) { c.Auth.Enabled = true }, ErrInvalidConfig},
		{"half static credentials", func(c *Config) { c.AWS.AccessKeyID = "AKIA" }, ErrInvalidConfig},
		{"bad log level", func(c *Config) {
			c.Observe.Logging.Enabled = true
			c.Observe.Logging.Level = "loud"
		}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			assert.ErrorIs(t, c.Validate(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt"), []byte("hmac-key\n"), 0o600))
	t.Setenv("DDB_SECRET", "local-secret")

	path := filepath.Join(dir, "discovery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
secrets:
  file_dir: `+dir+`
auth:
  enabled: true
  secret: secretref:file:jwt
aws:
  endpoint: http://localhost:8000
  access_key_id: local
  secret_access_key: secretref:env:DDB_SECRET
`), 0o600))

	c, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hmac-key", c.Auth.Secret)
	assert.Equal(t, "local-secret", c.AWS.SecretAccessKey)
	assert.Equal(t, "local", c.AWS.AccessKeyID)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  secret: secretref:vault:x\n"), 0o600))
	_, err = Load(context.Background(), path)
	require.ErrorIs(t, err, secret.ErrProviderNotRegistered)

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  backend: redis\n"), 0o600))
	_, err = Load(context.Background(), path)
	require.ErrorIs(t, err, ErrUnknownBackend)
}
