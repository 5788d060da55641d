package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// JWKSConfig configures the JWKS key provider.
type JWKSConfig struct {
	// URL is the JWKS endpoint URL. See JWKSURL.
	URL string

	// CacheTTL is how long fetched keys are trusted before a refresh.
	// Default: 1 hour
	CacheTTL time.Duration

	// MinRefreshInterval rate limits refreshes triggered by unknown key ids,
	// so a stream of forged kids cannot hammer the endpoint.
	// Default: 1 minute
	MinRefreshInterval time.Duration

	// HTTPClient is the HTTP client to use for requests.
	// If nil, a client with a 10s timeout is used.
	HTTPClient *http.Client
}

// JWKSURL returns the key set location for a user pool issuer.
func JWKSURL(issuer string) string {
	return strings.TrimRight(issuer, "/") + "/.well-known/jwks.json"
}

// JWKSKeyProvider retrieves RSA signing keys from a JWKS endpoint.
//
// Keys are cached for CacheTTL. When a refresh fails, keys from earlier
// fetches keep working so a flaky endpoint does not log everyone out.
type JWKSKeyProvider struct {
	config JWKSConfig
	now    func() time.Time

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	attemptedAt time.Time
	flight      singleflight.Group
}

// NewJWKSKeyProvider creates a new JWKS key provider.
func NewJWKSKeyProvider(config JWKSConfig) *JWKSKeyProvider {
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Hour
	}
	if config.MinRefreshInterval <= 0 {
		config.MinRefreshInterval = time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSKeyProvider{
		config: config,
		now:    time.Now,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// GetKey returns the key for keyID. An empty keyID matches only when the set
// holds exactly one key.
func (p *JWKSKeyProvider) GetKey(ctx context.Context, keyID string) (any, error) {
	key, fresh, canRefresh := p.lookup(keyID)
	if key != nil && (fresh || !canRefresh) {
		return key, nil
	}
	if !canRefresh {
		return nil, ErrKeyNotFound
	}

	_, err, _ := p.flight.Do("refresh", func() (any, error) {
		return nil, p.refresh(ctx)
	})

	key, _, _ = p.lookup(keyID)
	switch {
	case key != nil:
		return key, nil
	case err != nil:
		return nil, err
	default:
		return nil, ErrKeyNotFound
	}
}

// lookup returns the cached key, whether the cache is within CacheTTL, and
// whether a refresh is allowed now.
func (p *JWKSKeyProvider) lookup(keyID string) (*rsa.PublicKey, bool, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	fresh := !p.fetchedAt.IsZero() && now.Sub(p.fetchedAt) < p.config.CacheTTL
	canRefresh := p.attemptedAt.IsZero() || now.Sub(p.attemptedAt) >= p.config.MinRefreshInterval

	var key *rsa.PublicKey
	if keyID == "" {
		if len(p.keys) == 1 {
			for _, k := range p.keys {
				key = k
			}
		}
	} else {
		key = p.keys[keyID]
	}
	return key, fresh, canRefresh
}

func (p *JWKSKeyProvider) refresh(ctx context.Context) error {
	p.mu.Lock()
	p.attemptedAt = p.now()
	p.mu.Unlock()

	keys, err := p.fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJWKSUnavailable, err)
	}

	p.mu.Lock()
	// Keep keys that rotated out; tokens signed with them stay valid until
	// they expire.
	for kid, k := range keys {
		p.keys[kid] = k
	}
	p.fetchedAt = p.now()
	p.mu.Unlock()
	return nil
}

func (p *JWKSKeyProvider) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var set jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := parseRSAPublicKey(jwk)
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("no usable signing keys")
	}
	return keys, nil
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parseRSAPublicKey(jwk jwkKey) (*rsa.PublicKey, error) {
	if jwk.N == "" || jwk.E == "" {
		return nil, errors.New("missing modulus or exponent")
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}

var _ KeyProvider = (*JWKSKeyProvider)(nil)
