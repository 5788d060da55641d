package auth

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Cognito claim names.
const (
	ClaimGroups   = "cognito:groups"
	ClaimTokenUse = "token_use"
	ClaimClientID = "client_id"
	ClaimEmail    = "email"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the expected token issuer (iss claim), e.g.
	// https://cognito-idp.<region>.amazonaws.com/<pool id>.
	Issuer string `yaml:"issuer"`

	// Audience is the app client id. ID tokens carry it in aud, access
	// tokens in client_id; either is accepted.
	Audience string `yaml:"audience"`

	// TokenUse restricts the token_use claim to "id" or "access".
	// Empty accepts both.
	TokenUse string `yaml:"token_use"`

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string `yaml:"header_name"`

	// TokenPrefix is stripped from the header value when present. Tokens
	// sent without it are accepted too.
	// Default: "Bearer "
	TokenPrefix string `yaml:"token_prefix"`

	// PrincipalClaim is the claim containing the user id.
	// Default: "sub"
	PrincipalClaim string `yaml:"principal_claim"`

	// GroupsClaim is the claim listing the user's groups.
	// Default: "cognito:groups"
	GroupsClaim string `yaml:"groups_claim"`

	// Leeway tolerates clock skew on exp, nbf and iat.
	// Default: 30s
	Leeway time.Duration `yaml:"leeway"`
}

// KeyProvider retrieves signing keys for JWT validation.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a static HMAC signing key. Intended for local
// development and tests.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	return p.key, nil
}

// JWTAuthenticator validates JWT tokens.
type JWTAuthenticator struct {
	config      JWTConfig
	keyProvider KeyProvider
	parser      *jwt.Parser
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config JWTConfig, keyProvider KeyProvider) *JWTAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}
	if config.GroupsClaim == "" {
		config.GroupsClaim = ClaimGroups
	}
	if config.Leeway == 0 {
		config.Leeway = 30 * time.Second
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "HS256"}),
		jwt.WithLeeway(config.Leeway),
		jwt.WithIssuedAt(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}

	return &JWTAuthenticator{
		config:      config,
		keyProvider: keyProvider,
		parser:      jwt.NewParser(opts...),
	}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}

// Supports returns true if the request carries the token header.
func (a *JWTAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return strings.TrimSpace(req.GetHeader(a.config.HeaderName)) != ""
}

// Authenticate validates the JWT token.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	tokenString := a.extractToken(req.GetHeader(a.config.HeaderName))
	if tokenString == "" {
		return AuthFailure(ErrMissingCredentials), nil
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return a.keyProvider.GetKey(ctx, kid)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrJWKSUnavailable):
		return nil, err
	case errors.Is(err, jwt.ErrTokenExpired):
		return AuthFailure(ErrTokenExpired), nil
	case errors.Is(err, ErrKeyNotFound):
		return AuthFailure(ErrKeyNotFound), nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return AuthFailure(ErrTokenMalformed), nil
	default:
		return AuthFailure(ErrInvalidCredentials), nil
	}

	if a.config.TokenUse != "" {
		if use, _ := claims[ClaimTokenUse].(string); use != a.config.TokenUse {
			return AuthFailure(ErrWrongTokenUse), nil
		}
	}
	if a.config.Audience != "" && !a.audienceMatches(claims) {
		return AuthFailure(ErrInvalidCredentials), nil
	}

	identity := a.buildIdentity(claims)
	if identity.Principal == "" {
		return AuthFailure(ErrInvalidCredentials), nil
	}
	return AuthSuccess(identity), nil
}

func (a *JWTAuthenticator) extractToken(header string) string {
	header = strings.TrimSpace(header)
	prefix := strings.TrimSpace(a.config.TokenPrefix)
	n := len(prefix)
	if len(header) >= n && strings.EqualFold(header[:n], prefix) && (len(header) == n || header[n] == ' ') {
		header = header[n:]
	}
	return strings.TrimSpace(header)
}

func (a *JWTAuthenticator) audienceMatches(claims jwt.MapClaims) bool {
	aud, _ := claims.GetAudience()
	if slices.Contains(aud, a.config.Audience) {
		return true
	}
	clientID, _ := claims[ClaimClientID].(string)
	return clientID == a.config.Audience
}

func (a *JWTAuthenticator) buildIdentity(claims jwt.MapClaims) *Identity {
	identity := &Identity{
		Method: AuthMethodJWT,
		Claims: maps.Clone(map[string]any(claims)),
	}

	identity.Principal, _ = claims[a.config.PrincipalClaim].(string)
	identity.Email, _ = claims[ClaimEmail].(string)
	identity.Groups = stringsClaim(claims[a.config.GroupsClaim])

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		identity.IssuedAt = iat.Time
	}
	return identity
}

// stringsClaim reads a claim holding a list of strings, or a single
// space-separated string.
func stringsClaim(v any) []string {
	switch v := v.(type) {
	case string:
		return strings.Fields(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return slices.Clone(v)
	default:
		return nil
	}
}

var (
	_ Authenticator = (*JWTAuthenticator)(nil)
	_ KeyProvider   = (*StaticKeyProvider)(nil)
)
