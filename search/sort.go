package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/gravyprompts/discovery/templates"
)

// Sortable fields.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldTitle     = "title"
	FieldViewCount = "viewCount"
	FieldUseCount  = "useCount"
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

type compareFunc func(a, b templates.Template) int

var fieldComparators = map[string]compareFunc{
	FieldCreatedAt: func(a, b templates.Template) int { return a.CreatedAt.Compare(b.CreatedAt) },
	FieldUpdatedAt: func(a, b templates.Template) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	FieldTitle: func(a, b templates.Template) int {
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	},
	FieldViewCount: func(a, b templates.Template) int { return cmp.Compare(a.ViewCount, b.ViewCount) },
	FieldUseCount:  func(a, b templates.Template) int { return cmp.Compare(a.UseCount, b.UseCount) },
}

// NormalizeSort maps a requested field and order onto supported values.
// Unknown fields fall back to createdAt; anything but "asc" is descending.
func NormalizeSort(field, order string) (string, string) {
	if _, ok := fieldComparators[field]; !ok {
		field = FieldCreatedAt
	}
	if strings.EqualFold(strings.TrimSpace(order), OrderAsc) {
		return field, OrderAsc
	}
	return field, OrderDesc
}

// SortBy returns a copy of items stably sorted by field in order.
func SortBy(items []templates.Template, field, order string) []templates.Template {
	field, order = NormalizeSort(field, order)
	compare := fieldComparators[field]
	if order == OrderDesc {
		asc := compare
		compare = func(a, b templates.Template) int { return asc(b, a) }
	}

	out := slices.Clone(items)
	slices.SortStableFunc(out, compare)
	return out
}

// SortByPopularity returns a copy of items stably sorted by useCount,
// highest first.
func SortByPopularity(items []templates.Template) []templates.Template {
	return SortBy(items, FieldUseCount, OrderDesc)
}
