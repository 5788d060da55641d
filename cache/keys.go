package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Key builder defaults. Each builder substitutes these for missing fields so
// that an absent value and a present-but-different value never share a key.
const (
	DefaultListLimit = 20
	DefaultFilter    = "all"
	DefaultSortBy    = "createdAt"
	DefaultSortOrder = "desc"
	AnonymousSegment = "anonymous"
	StartSegment     = "start"
)

// Key namespaces, usable as invalidation globs with a trailing '*'.
const (
	ListNamespace    = "templates:list:"
	GetNamespace     = "templates:get:"
	UserNamespace    = "templates:user:"
	PopularNamespace = "templates:popular:"
)

// hashedPrefixLen is how much of an over-long key is kept readable before the
// digest is appended.
const hashedPrefixLen = 64

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "\n", "%0A", "\r", "%0D")

// ListKey holds the inputs that identify one list/search result page.
type ListKey struct {
	Filter    string
	Tag       string
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Cursor    string
	Requester string
}

// TemplateListKey builds
//
//	templates:list:<filter>:<tag>:<search>:<sortBy>:<sortOrder>:<limit>:<cursor>:<requester>
//
// Missing filter becomes "all", sortBy "createdAt", sortOrder "desc", limit
// (<= 0) "20", cursor "start" and requester "anonymous". A missing tag or
// search is an empty segment. Tag is lowercased; search is trimmed and
// lowercased. Segments are escaped so ':' in user input cannot shift fields.
func TemplateListKey(k ListKey) string {
	limit := k.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	segments := []string{
		orDefault(k.Filter, DefaultFilter),
		strings.ToLower(strings.TrimSpace(k.Tag)),
		strings.ToLower(strings.TrimSpace(k.Search)),
		orDefault(k.SortBy, DefaultSortBy),
		orDefault(strings.ToLower(k.SortOrder), DefaultSortOrder),
		strconv.Itoa(limit),
		orDefault(k.Cursor, StartSegment),
		orDefault(k.Requester, AnonymousSegment),
	}
	return build(ListNamespace, segments...)
}

// TemplateKey builds templates:get:<id>.
func TemplateKey(id string) string {
	return build(GetNamespace, id)
}

// UserTemplatesKey builds templates:user:<userID>, with "anonymous" for an
// empty user.
func UserTemplatesKey(userID string) string {
	return build(UserNamespace, orDefault(userID, AnonymousSegment))
}

// PopularKey builds templates:popular:<limit>, with 20 for limit <= 0.
func PopularKey(limit int) string {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return build(PopularNamespace, strconv.Itoa(limit))
}

func build(namespace string, segments ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for i, s := range segments {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(segmentEscaper.Replace(s))
	}
	return bound(b.String())
}

// bound keeps keys within MaxKeyLength. Over-long keys keep a readable prefix
// (so namespace globs still match) followed by a SHA-256 of the full key.
func bound(key string) string {
	if len(key) <= MaxKeyLength {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return key[:hashedPrefixLen] + ":sha256=" + hex.EncodeToString(sum[:])
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
