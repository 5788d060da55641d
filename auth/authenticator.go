package auth

import (
	"context"
	"time"

	"github.com/gravyprompts/discovery/observe"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines.
// - Errors: Authenticate returns (nil, error) for internal errors;
//   returns (AuthResult, nil) for auth failures (check result.Authenticated).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports returns true if this authenticator can handle the request.
	Supports(ctx context.Context, req *AuthRequest) bool

	// Authenticate validates credentials and returns a result.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest contains the information needed for authentication.
type AuthRequest struct {
	// Headers contains request headers (Authorization, ...).
	Headers map[string][]string
}

// GetHeader returns the first value for a header, or empty string. Header
// names match case-insensitively.
func (r *AuthRequest) GetHeader(key string) string {
	return headerValue(r.Headers, key)
}

// AuthResult is the result of an authentication attempt.
type AuthResult struct {
	// Authenticated is true if authentication succeeded.
	Authenticated bool

	// Identity is the authenticated identity (only if Authenticated=true).
	Identity *Identity

	// Error is the authentication error (only if Authenticated=false).
	Error error
}

// AuthSuccess creates a successful authentication result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{Authenticated: true, Identity: identity}
}

// AuthFailure creates a failed authentication result.
func AuthFailure(err error) *AuthResult {
	return &AuthResult{Error: err}
}

// Resolve authenticates headers with a and returns the caller's identity.
// Missing credentials, rejected tokens and internal errors all yield the
// anonymous identity; the latter two are logged. A nil authenticator always
// yields anonymous.
func Resolve(ctx context.Context, a Authenticator, headers map[string][]string, logger observe.Logger) *Identity {
	if a == nil {
		return AnonymousIdentity()
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	req := &AuthRequest{Headers: headers}
	if !a.Supports(ctx, req) {
		return AnonymousIdentity()
	}

	res, err := a.Authenticate(ctx, req)
	switch {
	case err != nil:
		logger.Warn(ctx, "authentication error", observe.Field{Key: "authenticator", Value: a.Name()}, observe.Err(err))
		return AnonymousIdentity()
	case !res.Authenticated:
		logger.Debug(ctx, "credentials rejected", observe.Field{Key: "authenticator", Value: a.Name()}, observe.Err(res.Error))
		return AnonymousIdentity()
	case res.Identity.IsExpired(time.Now()):
		return AnonymousIdentity()
	default:
		return res.Identity
	}
}
