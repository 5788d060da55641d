// Package app assembles a discovery instance from configuration.
//
// New builds the observer, the result cache, the template store, the router,
// the per-caller rate limiter, the health aggregator and the bearer token
// authenticator. Handler exposes them over HTTP:
//
//	GET  /templates                   search (filter, tag, search, sortBy, sortOrder, limit, nextToken)
//	GET  /templates/popular           most used public templates (limit)
//	GET  /templates/{id}              one template visible to the caller
//	POST /templates/{id}/invalidate   drop cached results for a template (Admins only)
//	GET  /healthz, /readyz, /health   probes
package app
