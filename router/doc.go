// Package router answers template list and search requests.
//
// A Query names a filter:
//
//   - mine: the requester's own templates, newest first, paged by the store
//   - public: public, approved templates
//   - popular: like public, re-sorted by use count
//   - all: public ∪ mine, merged and deduplicated, one page only
//
// The router picks the store index for the filter, runs the search pipeline
// over the page, trims it, and wraps the store's continuation key in an opaque
// cursor. Results for the public and popular filters are the same for every
// requester, so they are cached; concurrent misses on one key share a single
// store query.
//
// Malformed input never fails a request: a bad limit falls back to the
// default, an undecodable cursor starts from the beginning, an unknown filter
// returns nothing. Store failures are returned to the caller.
package router
