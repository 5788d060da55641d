// Package search ranks templates against a free-text query.
//
// Apply runs the whole pipeline over one page of candidates: tag filter,
// relevance scoring, sort override, trim. The pieces are exported for callers
// that need only part of it.
//
// Scoring is additive per query term. Title hits dominate, tags and variables
// come next, content hits are weakest, and a small popularity bonus breaks
// near ties. Title words within a short edit distance of a longer term count
// as fuzzy hits so that typos still find their template. An item that matches
// no term at all is dropped no matter how popular it is.
//
// Everything here is pure and safe for concurrent use. Input slices are never
// modified.
package search
