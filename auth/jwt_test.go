package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-with-enough-bytes")

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":            "user-123",
		"iss":            "https://cognito-idp.us-east-1.amazonaws.com/pool",
		"aud":            "client-1",
		"email":          "user@example.com",
		"cognito:groups": []any{"Admins", "Editors"},
		"token_use":      "id",
		"iat":            now.Add(-time.Minute).Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func bearer(token string) *AuthRequest {
	return &AuthRequest{Headers: map[string][]string{"Authorization": {"Bearer " + token}}}
}

func cognitoConfig() JWTConfig {
	return JWTConfig{
		Issuer:   "https://cognito-idp.us-east-1.amazonaws.com/pool",
		Audience: "client-1",
		TokenUse: "id",
	}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSecret))

	tests := []struct {
		name    string
		headers map[string][]string
		want    bool
	}{
		{"no header", map[string][]string{}, false},
		{"blank header", map[string][]string{"Authorization": {"  "}}, false},
		{"bearer token", map[string][]string{"Authorization": {"Bearer abc"}}, true},
		{"raw token", map[string][]string{"Authorization": {"abc"}}, true},
		{"lowercase header name", map[string][]string{"authorization": {"abc"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Supports(context.Background(), &AuthRequest{Headers: tt.headers}); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_Success(t *testing.T) {
	a := NewJWTAuthenticator(cognitoConfig(), NewStaticKeyProvider(testSecret))

	res, err := a.Authenticate(context.Background(), bearer(signHS256(t, validClaims())))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !res.Authenticated {
		t.Fatalf("Authenticated = false, error = %v", res.Error)
	}

	id := res.Identity
	if id.Principal != "user-123" || id.Email != "user@example.com" {
		t.Errorf("identity = %+v", id)
	}
	if !id.IsAdmin() || !id.HasGroup("Editors") {
		t.Errorf("Groups = %v, want Admins and Editors", id.Groups)
	}
	if id.Method != AuthMethodJWT {
		t.Errorf("Method = %v, want jwt", id.Method)
	}
	if id.ExpiresAt.IsZero() || id.IssuedAt.IsZero() {
		t.Error("ExpiresAt and IssuedAt should be set")
	}
	if id.Claims["token_use"] != "id" {
		t.Errorf("Claims[token_use] = %v", id.Claims["token_use"])
	}
}

func TestJWTAuthenticator_TokenForms(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSecret))
	token := signHS256(t, validClaims())

	for _, header := range []string{"Bearer " + token, "bearer " + token, token, "  Bearer " + token + "  "} {
		req := &AuthRequest{Headers: map[string][]string{"Authorization": {header}}}
		res, err := a.Authenticate(context.Background(), req)
		if err != nil || !res.Authenticated {
			t.Errorf("header %.20q...: authenticated = %v, err = %v", header, res != nil && res.Authenticated, err)
		}
	}
}

func TestJWTAuthenticator_AccessTokenClientID(t *testing.T) {
	cfg := cognitoConfig()
	cfg.TokenUse = "access"
	a := NewJWTAuthenticator(cfg, NewStaticKeyProvider(testSecret))

	claims := validClaims()
	delete(claims, "aud")
	claims["client_id"] = "client-1"
	claims["token_use"] = "access"

	res, err := a.Authenticate(context.Background(), bearer(signHS256(t, claims)))
	if err != nil || !res.Authenticated {
		t.Fatalf("Authenticate() = %+v, %v", res, err)
	}
}

func TestJWTAuthenticator_Rejections(t *testing.T) {
	a := NewJWTAuthenticator(cognitoConfig(), NewStaticKeyProvider(testSecret))

	with := func(mutate func(jwt.MapClaims)) string {
		c := validClaims()
		mutate(c)
		return signHS256(t, c)
	}
	wrongKey, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("another-secret-entirely"))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"malformed", "not.a.jwt", ErrTokenMalformed},
		{"expired", with(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }), ErrTokenExpired},
		{"wrong issuer", with(func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }), ErrInvalidCredentials},
		{"wrong audience", with(func(c jwt.MapClaims) { c["aud"] = "client-2" }), ErrInvalidCredentials},
		{"wrong token use", with(func(c jwt.MapClaims) { c["token_use"] = "access" }), ErrWrongTokenUse},
		{"missing subject", with(func(c jwt.MapClaims) { delete(c, "sub") }), ErrInvalidCredentials},
		{"wrong signature", wrongKey, ErrInvalidCredentials},
		{"alg none", unsigned, ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Authenticate(context.Background(), bearer(tt.token))
			if err != nil {
				t.Fatalf("Authenticate() error = %v, want a failed result", err)
			}
			if res.Authenticated {
				t.Fatal("Authenticated = true")
			}
			if !errors.Is(res.Error, tt.want) {
				t.Errorf("Error = %v, want %v", res.Error, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_MissingToken(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSecret))

	res, err := a.Authenticate(context.Background(), &AuthRequest{Headers: map[string][]string{"Authorization": {"Bearer "}}})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !errors.Is(res.Error, ErrMissingCredentials) {
		t.Errorf("Error = %v, want ErrMissingCredentials", res.Error)
	}
}

type failingKeyProvider struct{ err error }

func (p failingKeyProvider) GetKey(context.Context, string) (any, error) { return nil, p.err }

func TestJWTAuthenticator_KeyProviderErrors(t *testing.T) {
	token := signHS256(t, validClaims())

	a := NewJWTAuthenticator(JWTConfig{}, failingKeyProvider{err: ErrJWKSUnavailable})
	if _, err := a.Authenticate(context.Background(), bearer(token)); !errors.Is(err, ErrJWKSUnavailable) {
		t.Errorf("Authenticate() error = %v, want ErrJWKSUnavailable", err)
	}

	a = NewJWTAuthenticator(JWTConfig{}, failingKeyProvider{err: ErrKeyNotFound})
	res, err := a.Authenticate(context.Background(), bearer(token))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !errors.Is(res.Error, ErrKeyNotFound) {
		t.Errorf("Error = %v, want ErrKeyNotFound", res.Error)
	}
}

func TestStringsClaim(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"nil", nil, 0},
		{"list", []any{"a", 1, "b"}, 2},
		{"string list", []string{"a"}, 1},
		{"space separated", "a b c", 3},
		{"number", 7.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringsClaim(tt.in); len(got) != tt.want {
				t.Errorf("stringsClaim(%v) = %v, want %d values", tt.in, got, tt.want)
			}
		})
	}
}
