package templates

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// contentPrefixLen is how much of the trimmed content is compared when
// looking for near-duplicate seed templates.
const contentPrefixLen = 200

// TitleDuplicate records a title seen more than once in the input.
type TitleDuplicate struct {
	Title  string `json:"title"`
	First  int    `json:"first"`
	Second int    `json:"second"`
}

// ContentDuplicate records two records whose content prefixes collide.
type ContentDuplicate struct {
	Title1 string `json:"title1"`
	Title2 string `json:"title2"`
	First  int    `json:"first"`
	Second int    `json:"second"`
}

// Report summarizes a consolidation run.
type Report struct {
	Total   int                `json:"total"`
	Unique  int                `json:"unique"`
	Titles  []TitleDuplicate   `json:"titles,omitempty"`
	Content []ContentDuplicate `json:"content,omitempty"`
}

// Consolidate deduplicates seed templates by trimmed title. For every title the
// record with the highest Popularity wins; the earliest record wins ties. The
// result is sorted by category, then title. Records without an ID get a new one.
func Consolidate(records []Template) ([]Template, Report) {
	report := Report{Total: len(records)}

	seenTitle := make(map[string]int, len(records))
	seenContent := make(map[string]int, len(records))
	best := make(map[string]int, len(records))
	order := make([]string, 0, len(records))

	for i := range records {
		title := strings.TrimSpace(records[i].Title)

		if first, ok := seenTitle[title]; ok {
			report.Titles = append(report.Titles, TitleDuplicate{Title: title, First: first, Second: i})
			if records[i].Popularity() > records[best[title]].Popularity() {
				best[title] = i
			}
		} else {
			seenTitle[title] = i
			best[title] = i
			order = append(order, title)
		}

		prefix := contentPrefix(records[i].Content)
		if first, ok := seenContent[prefix]; ok {
			report.Content = append(report.Content, ContentDuplicate{
				Title1: records[first].Title,
				Title2: records[i].Title,
				First:  first,
				Second: i,
			})
		} else {
			seenContent[prefix] = i
		}
	}

	unique := make([]Template, 0, len(order))
	for _, title := range order {
		t := records[best[title]]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		unique = append(unique, t)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].Category != unique[j].Category {
			return unique[i].Category < unique[j].Category
		}
		return unique[i].Title < unique[j].Title
	})

	report.Unique = len(unique)
	return unique, report
}

func contentPrefix(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) > contentPrefixLen {
		return string(runes[:contentPrefixLen])
	}
	return content
}
