// Package store is the indexed-query primitive template discovery reads from.
//
// A Store answers range queries against a named secondary index: one
// partition value, an optional sort key equality, a page size, and an
// exclusive start key from the previous page. Templates are indexed by owner
// (newest first) and by (visibility, moderation status).
//
// Continuation keys are plain string maps. Callers treat them as opaque and
// hand them back unchanged.
package store
