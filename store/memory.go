package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gravyprompts/discovery/templates"
)

// indexDef names the attributes of a secondary index.
type indexDef struct {
	partition string
	sort      string
}

var memoryIndexes = map[string]indexDef{
	OwnerIndex:      {partition: AttrOwner, sort: AttrCreatedAt},
	VisibilityIndex: {partition: AttrVisibility, sort: AttrModerationStatus},
}

// MemoryStore is an in-process Store for tests and local development. It
// mimics the DynamoDB indexes: items in a partition are ordered by the index
// sort key, then by createdAt and id, and pages resume after StartKey.
// Unlike DynamoDB, every continuation key also carries createdAt so that
// position can be recovered without the item.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]templates.Template
	err   error
}

// NewMemoryStore creates a MemoryStore holding items.
func NewMemoryStore(items ...templates.Template) *MemoryStore {
	s := &MemoryStore{items: make(map[string]templates.Template, len(items))}
	for _, t := range items {
		s.items[t.ID] = t
	}
	return s
}

// Put inserts or replaces a template.
func (s *MemoryStore) Put(t templates.Template) {
	s.mu.Lock()
	s.items[t.ID] = t
	s.mu.Unlock()
}

// Delete removes a template. Missing ids are ignored.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Len returns the number of stored templates.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// FailWith makes every subsequent call return err. nil restores normal
// operation.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Get returns the template with id.
func (s *MemoryStore) Get(ctx context.Context, id string) (templates.Template, error) {
	if err := ctx.Err(); err != nil {
		return templates.Template{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return templates.Template{}, fmt.Errorf("store: get %s: %w", id, s.err)
	}
	t, ok := s.items[id]
	if !ok {
		return templates.Template{}, ErrNotFound
	}
	return t, nil
}

// Query returns one page of the index partition.
func (s *MemoryStore) Query(ctx context.Context, req Request) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if err := req.Validate(); err != nil {
		return Page{}, err
	}
	idx, ok := memoryIndexes[req.Index]
	if !ok {
		return Page{}, fmt.Errorf("%w: %s", ErrUnknownIndex, req.Index)
	}
	if req.Condition.PartitionKey != idx.partition || (req.Condition.SortKey != "" && req.Condition.SortKey != idx.sort) {
		return Page{}, fmt.Errorf("%w: condition does not match index %s", ErrInvalidRequest, req.Index)
	}

	s.mu.RLock()
	if s.err != nil {
		s.mu.RUnlock()
		return Page{}, fmt.Errorf("store: query %s: %w", req.Index, s.err)
	}
	matches := make([]templates.Template, 0)
	for _, t := range s.items {
		if attr(t, idx.partition) != req.Condition.PartitionValue {
			continue
		}
		if req.Condition.SortKey != "" && attr(t, idx.sort) != req.Condition.SortValue {
			continue
		}
		matches = append(matches, t)
	}
	s.mu.RUnlock()

	order := func(a, b Key) int {
		c := cmp.Or(
			strings.Compare(a[idx.sort], b[idx.sort]),
			strings.Compare(a[AttrCreatedAt], b[AttrCreatedAt]),
			strings.Compare(a[AttrID], b[AttrID]),
		)
		if req.Condition.Descending {
			return -c
		}
		return c
	}
	slices.SortFunc(matches, func(a, b templates.Template) int {
		return order(keyOf(a, idx), keyOf(b, idx))
	})

	// Resume at the first item ordered after the start key, whether or not
	// that item still exists.
	if req.StartKey != nil {
		start, _ := slices.BinarySearchFunc(matches, req.StartKey, func(t templates.Template, k Key) int {
			if order(keyOf(t, idx), k) <= 0 {
				return -1
			}
			return 1
		})
		matches = matches[start:]
	}

	page := Page{Items: matches}
	if req.Limit > 0 && len(matches) > req.Limit {
		page.Items = matches[:req.Limit]
		page.LastKey = keyOf(page.Items[req.Limit-1], idx)
	}
	return page, nil
}

// attr returns the string form of an indexed attribute.
func attr(t templates.Template, name string) string {
	switch name {
	case AttrID:
		return t.ID
	case AttrOwner:
		return t.OwnerID
	case AttrVisibility:
		return string(t.Visibility)
	case AttrModerationStatus:
		return string(t.ModerationStatus)
	case AttrCreatedAt:
		return formatTime(t.CreatedAt)
	default:
		return ""
	}
}

func keyOf(t templates.Template, idx indexDef) Key {
	return Key{
		AttrID:        t.ID,
		AttrCreatedAt: attr(t, AttrCreatedAt),
		idx.partition: attr(t, idx.partition),
		idx.sort:      attr(t, idx.sort),
	}
}

// formatTime is the stored form of timestamps. Fixed-width UTC so that string
// order is time order.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

var _ Store = (*MemoryStore)(nil)
