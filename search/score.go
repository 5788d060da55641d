package search

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/gravyprompts/discovery/templates"
)

// Signal weights. They are additive and a single term can earn several.
const (
	WeightTitleExact    = 100
	WeightTitleContains = 50
	WeightWordBoundary  = 25
	WeightTitlePrefix   = 70
	WeightFuzzyTitle    = 30
	WeightTagExact      = 40
	WeightTagText       = 20
	WeightContent       = 10
	WeightContentEarly  = 10 // first hit within ContentEarlyWithin bytes
	WeightContentNear   = 5  // first hit within ContentNearWithin bytes
	WeightPerOccurrence = 2
	WeightVariable      = 15
)

// Matching thresholds.
const (
	FuzzyMinTermLen    = 4 // terms shorter than this never fuzzy-match
	FuzzyMaxDistance   = 2
	ContentEarlyWithin = 100
	ContentNearWithin  = 300
	MaxOccurrences     = 5
	MaxUseCountBonus   = 50
	MaxViewCountBonus  = 100
)

// Scored is a template with its relevance for one query.
type Scored struct {
	Template templates.Template
	Score    float64
	Matched  bool
}

// Tokenize lowercases text and splits it on whitespace. Blank text yields no
// terms.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Score computes the relevance of t for terms. Missing tags, content, or
// variables count as empty.
func Score(t templates.Template, terms []string) Scored {
	doc := newDocument(t)

	var score float64
	matched := false
	for _, term := range terms {
		s, ok := doc.scoreTerm(term)
		score += s
		matched = matched || ok
	}

	if matched {
		score += PopularityBonus(t)
	}
	return Scored{Template: t, Score: score, Matched: matched}
}

// PopularityBonus is min(useCount, 50)/10 + min(viewCount, 100)/50: at most
// 5 points from uses and 2 from views.
func PopularityBonus(t templates.Template) float64 {
	uses := float64(clamp(t.UseCount, 0, MaxUseCountBonus)) / 10
	views := float64(clamp(t.ViewCount, 0, MaxViewCountBonus)) / 50
	return uses + views
}

// document holds the lowercased fields of one template.
type document struct {
	title      string
	titleWords []string
	tags       []string
	tagText    string
	content    string
	variables  []string
}

func newDocument(t templates.Template) document {
	title := strings.ToLower(t.Title)
	tags := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		tags[i] = strings.ToLower(tag)
	}
	variables := make([]string, len(t.Variables))
	for i, v := range t.Variables {
		variables[i] = strings.ToLower(v)
	}
	return document{
		title:      title,
		titleWords: strings.Fields(title),
		tags:       tags,
		tagText:    strings.Join(tags, " "),
		content:    strings.ToLower(t.Content),
		variables:  variables,
	}
}

func (d document) scoreTerm(term string) (float64, bool) {
	var score float64
	matched := false

	switch {
	case d.title == term:
		score += WeightTitleExact
		matched = true
	case strings.Contains(d.title, term):
		score += WeightTitleContains
		matched = true
		if containsWord(d.title, term) {
			score += WeightWordBoundary
		}
		if strings.HasPrefix(d.title, term) {
			score += WeightTitlePrefix
		}
	case fuzzyMatchAny(d.titleWords, term):
		score += WeightFuzzyTitle
		matched = true
	}

	switch {
	case slices.Contains(d.tags, term):
		score += WeightTagExact
		matched = true
	case strings.Contains(d.tagText, term):
		score += WeightTagText
		matched = true
	}

	if idx := strings.Index(d.content, term); idx >= 0 {
		score += WeightContent
		matched = true
		switch {
		case idx < ContentEarlyWithin:
			score += WeightContentEarly
		case idx < ContentNearWithin:
			score += WeightContentNear
		}
		occurrences := min(strings.Count(d.content, term), MaxOccurrences)
		score += float64(occurrences * WeightPerOccurrence)
	}

	for _, v := range d.variables {
		if strings.Contains(v, term) {
			score += WeightVariable
			matched = true
			break
		}
	}

	return score, matched
}

// fuzzyMatchAny reports whether any word is within FuzzyMaxDistance edits of
// term. Terms shorter than FuzzyMinTermLen runes never match.
func fuzzyMatchAny(words []string, term string) bool {
	if utf8.RuneCountInString(term) < FuzzyMinTermLen {
		return false
	}
	for _, w := range words {
		if abs(utf8.RuneCountInString(w)-utf8.RuneCountInString(term)) > FuzzyMaxDistance {
			continue
		}
		if levenshtein.ComputeDistance(w, term) <= FuzzyMaxDistance {
			return true
		}
	}
	return false
}

// containsWord reports whether term occurs in s with a non-word character or
// the string edge on both sides.
func containsWord(s, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset <= len(s)-len(term); {
		idx := strings.Index(s[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
