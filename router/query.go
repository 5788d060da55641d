package router

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gravyprompts/discovery/cache"
	"github.com/gravyprompts/discovery/search"
	"github.com/gravyprompts/discovery/templates"
)

// Filter selects which templates a query reads.
type Filter string

const (
	FilterMine    Filter = "mine"
	FilterPublic  Filter = "public"
	FilterPopular Filter = "popular"
	FilterAll     Filter = "all"
)

// DefaultLimit is the page size used when none, or a bad one, is given.
const DefaultLimit = cache.DefaultListLimit

// ParseFilter lowercases and trims s. An empty filter is FilterAll; other
// unknown values are returned as-is and select nothing.
func ParseFilter(s string) Filter {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FilterAll
	}
	return Filter(s)
}

// Valid reports whether f is a known filter.
func (f Filter) Valid() bool {
	switch f {
	case FilterMine, FilterPublic, FilterPopular, FilterAll:
		return true
	default:
		return false
	}
}

// label is the metric and span label for f. Unknown filters share one value.
func (f Filter) label() string {
	if f.Valid() {
		return string(f)
	}
	return "unknown"
}

// ParseLimit parses a page size. Missing, non-numeric, zero and negative
// values give DefaultLimit. Large values are returned unchanged.
func ParseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return DefaultLimit
	}
	return n
}

// Query is one list or search request.
type Query struct {
	Filter    Filter
	Tag       string
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Cursor    string

	// Requester is the authenticated user id; empty means anonymous.
	Requester string

	// RequestKey identifies the caller to the rate limiter, typically a
	// client address. Defaults to Requester, then "anonymous".
	RequestKey string
}

// QueryFromValues reads a Query from URL query parameters: filter, tag,
// search, sortBy, sortOrder, limit and nextToken.
func QueryFromValues(v url.Values, requester string) Query {
	return Query{
		Filter:    ParseFilter(v.Get("filter")),
		Tag:       v.Get("tag"),
		Search:    v.Get("search"),
		SortBy:    v.Get("sortBy"),
		SortOrder: v.Get("sortOrder"),
		Limit:     ParseLimit(v.Get("limit")),
		Cursor:    v.Get("nextToken"),
		Requester: requester,
	}
}

func (q Query) rateKey() string {
	switch {
	case q.RequestKey != "":
		return q.RequestKey
	case q.Requester != "":
		return q.Requester
	default:
		return cache.AnonymousSegment
	}
}

// listKey is the cache key for a public or popular query. The requester is
// left out because these results do not depend on who asks.
func (q Query) listKey() string {
	return cache.TemplateListKey(cache.ListKey{
		Filter:    string(q.Filter),
		Tag:       q.Tag,
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Limit:     q.Limit,
		Cursor:    q.Cursor,
	})
}

func (q Query) options() search.Options {
	return search.Options{
		Tag:          q.Tag,
		Text:         q.Search,
		SortBy:       q.SortBy,
		SortOrder:    q.SortOrder,
		ByPopularity: q.Filter == FilterPopular,
		Limit:        q.Limit,
	}
}

// Result is one page of templates.
type Result struct {
	Items      []templates.Template `json:"items"`
	NextCursor string               `json:"nextToken,omitempty"`
	Count      int                  `json:"count"`
}

func newResult(items []templates.Template, cursor string) Result {
	if items == nil {
		items = []templates.Template{}
	}
	return Result{Items: items, NextCursor: cursor, Count: len(items)}
}
