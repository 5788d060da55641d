package templates

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultSeedFormat is the format of seed records that name none.
const DefaultSeedFormat = "html"

// seedRecord mirrors the JSON seed shape, where tags may be either a list or
// a comma-separated string.
type seedRecord struct {
	ID          string          `json:"templateId"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Format      string          `json:"format"`
	Tags        json.RawMessage `json:"tags"`
	Category    string          `json:"category"`
	AuthorEmail string          `json:"authorEmail"`
	Visibility  string          `json:"visibility"`
	ViewCount   int             `json:"viewCount"`
	UseCount    int             `json:"useCount"`
}

// DecodeSeedJSON reads a JSON array of seed templates. Records without a
// format get defaultFormat, or DefaultSeedFormat when that is empty.
func DecodeSeedJSON(r io.Reader, defaultFormat string) ([]Template, error) {
	var raw []seedRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("templates: decode seed: %w", err)
	}

	out := make([]Template, 0, len(raw))
	for i, rec := range raw {
		tags, err := decodeSeedTags(rec.Tags)
		if err != nil {
			return nil, fmt.Errorf("templates: seed record %d: %w", i, err)
		}
		out = append(out, Template{
			ID:          rec.ID,
			Title:       rec.Title,
			Content:     rec.Content,
			Format:      seedFormat(rec.Format, defaultFormat),
			Tags:        tags,
			Category:    rec.Category,
			AuthorEmail: rec.AuthorEmail,
			Visibility:  Visibility(rec.Visibility),
			ViewCount:   rec.ViewCount,
			UseCount:    rec.UseCount,
		})
	}
	return out, nil
}

// DecodeSeedCSV reads seed templates from CSV with a header row. Columns are
// matched by name (templateId, title, content, format, tags, category,
// authorEmail, visibility, viewCount, useCount); unknown columns are ignored
// and missing ones are empty. Tags are comma-separated. Empty counts are 0.
func DecodeSeedCSV(r io.Reader, defaultFormat string) ([]Template, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("templates: decode seed csv: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	var out []Template
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("templates: decode seed csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		field := func(name string) string {
			if i, ok := cols[name]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}
		views, err := seedCount(field("viewCount"))
		if err != nil {
			return nil, fmt.Errorf("templates: seed csv line %d: viewCount: %w", line, err)
		}
		uses, err := seedCount(field("useCount"))
		if err != nil {
			return nil, fmt.Errorf("templates: seed csv line %d: useCount: %w", line, err)
		}

		out = append(out, Template{
			ID:          field("templateId"),
			Title:       field("title"),
			Content:     field("content"),
			Format:      seedFormat(field("format"), defaultFormat),
			Tags:        SplitTags(field("tags")),
			Category:    field("category"),
			AuthorEmail: field("authorEmail"),
			Visibility:  Visibility(field("visibility")),
			ViewCount:   views,
			UseCount:    uses,
		})
	}
}

func seedFormat(format, fallback string) string {
	switch {
	case format != "":
		return format
	case fallback != "":
		return fallback
	default:
		return DefaultSeedFormat
	}
}

func seedCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func decodeSeedTags(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return NormalizeTags(list), nil
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil {
		return nil, fmt.Errorf("tags must be a list or a string: %w", err)
	}
	return SplitTags(joined), nil
}
