package router

import "errors"

var (
	// ErrRateLimited is returned when the configured limiter rejects a request.
	ErrRateLimited = errors.New("router: rate limit exceeded")

	// ErrNotFound is returned by Lookup for a missing template or one the
	// requester may not see.
	ErrNotFound = errors.New("router: template not found")
)
