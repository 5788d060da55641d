package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/gravyprompts/discovery/templates"
)

// Options selects what Apply does to a page of candidates.
type Options struct {
	// Tag keeps only templates carrying this tag, ignoring case.
	Tag string

	// Text is the free-text query. Blank text disables scoring.
	Text string

	// SortBy and SortOrder order unranked results. See NormalizeSort.
	SortBy    string
	SortOrder string

	// ByPopularity forces a final sort by useCount, overriding relevance.
	ByPopularity bool

	// Limit truncates the result; <= 0 keeps everything.
	Limit int
}

// Apply filters, ranks, sorts, and trims items.
//
// With search text, results are in relevance order and unmatched items are
// gone. Without it, results follow SortBy/SortOrder (createdAt descending by
// default, which is the store's natural order). ByPopularity overrides both.
func Apply(items []templates.Template, opts Options) []templates.Template {
	out := FilterByTag(items, opts.Tag)

	if terms := Tokenize(opts.Text); len(terms) > 0 {
		out = Templates(Rank(out, terms))
	} else {
		out = SortBy(out, opts.SortBy, opts.SortOrder)
	}

	if opts.ByPopularity {
		out = SortByPopularity(out)
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// FilterByTag returns the items carrying tag, ignoring case and surrounding
// whitespace. A blank tag keeps everything.
func FilterByTag(items []templates.Template, tag string) []templates.Template {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return slices.Clone(items)
	}

	out := make([]templates.Template, 0, len(items))
	for _, t := range items {
		if t.HasTag(tag) {
			out = append(out, t)
		}
	}
	return out
}

// Rank scores every item against terms, drops the unmatched ones, and sorts
// the rest by score, highest first. Equal scores keep their input order.
func Rank(items []templates.Template, terms []string) []Scored {
	out := make([]Scored, 0, len(items))
	for _, t := range items {
		if s := Score(t, terms); s.Matched {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b Scored) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// Templates strips the scores from ranked results.
func Templates(scored []Scored) []templates.Template {
	out := make([]templates.Template, len(scored))
	for i, s := range scored {
		out[i] = s.Template
	}
	return out
}
