package auth

import (
	"context"
	"strings"
)

type contextKey int

const (
	identityKey contextKey = iota
	headersKey
)

// WithIdentity returns a new context with the given identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context.
// Returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// RequesterID returns the authenticated user id in ctx, or "" when the caller
// is anonymous or unknown.
func RequesterID(ctx context.Context) string {
	return IdentityFromContext(ctx).RequesterID()
}

// WithHeaders returns a new context with the given request headers attached.
func WithHeaders(ctx context.Context, headers map[string][]string) context.Context {
	return context.WithValue(ctx, headersKey, headers)
}

// HeadersFromContext retrieves request headers from the context.
// Returns nil if no headers are present.
func HeadersFromContext(ctx context.Context) map[string][]string {
	h, _ := ctx.Value(headersKey).(map[string][]string)
	return h
}

// GetHeader retrieves a single header value from the context.
func GetHeader(ctx context.Context, key string) string {
	return headerValue(HeadersFromContext(ctx), key)
}

// headerValue returns the first value of key. The lookup falls back to a
// case-insensitive match because API gateways often lowercase header names.
func headerValue(headers map[string][]string, key string) string {
	if values := headers[key]; len(values) > 0 {
		return values[0]
	}
	for k, values := range headers {
		if strings.EqualFold(k, key) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}
