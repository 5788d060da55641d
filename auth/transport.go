package auth

import (
	"net/http"

	"github.com/gravyprompts/discovery/observe"
)

// Middleware resolves the caller with a and attaches the identity and the
// request headers to the request context. Requests are never rejected here;
// failed authentication continues as anonymous.
func Middleware(a Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithHeaders(r.Context(), r.Header)
			ctx = WithIdentity(ctx, Resolve(ctx, a, r.Header, logger))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
