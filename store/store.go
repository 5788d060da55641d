package store

import (
	"context"
	"errors"

	"github.com/gravyprompts/discovery/templates"
)

// Index names.
const (
	OwnerIndex      = "userId-createdAt-index"
	VisibilityIndex = "visibility-moderationStatus-index"
)

// Attribute names shared by every backend.
const (
	AttrID               = "templateId"
	AttrOwner            = "userId"
	AttrCreatedAt        = "createdAt"
	AttrVisibility       = "visibility"
	AttrModerationStatus = "moderationStatus"
)

// Sentinel errors.
var (
	ErrNotFound       = errors.New("store: template not found")
	ErrUnknownIndex   = errors.New("store: unknown index")
	ErrInvalidRequest = errors.New("store: invalid request")
)

// Key is a continuation key: the primary and index key attributes of the last
// item a page returned.
type Key map[string]string

// Condition is an equality key condition on an index.
type Condition struct {
	PartitionKey   string
	PartitionValue string
	SortKey        string // optional
	SortValue      string
	Descending     bool // newest first on range-sorted indexes
}

// Request is one page of an indexed query.
type Request struct {
	Index     string
	Condition Condition
	StartKey  Key // nil starts from the beginning
	Limit     int // <= 0 means no limit
}

// Page is a query result. LastKey is nil when there is nothing more to read.
type Page struct {
	Items   []templates.Template
	LastKey Key
}

// Store reads templates.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations must honor cancellation and deadlines.
// - Errors: Get returns ErrNotFound for a missing id. Backend failures are
// returned wrapped and are never retried here.
type Store interface {
	Query(ctx context.Context, req Request) (Page, error)
	Get(ctx context.Context, id string) (templates.Template, error)
}

// ByOwner is the owner index request for ownerID, newest first.
func ByOwner(ownerID string, limit int, start Key) Request {
	return Request{
		Index: OwnerIndex,
		Condition: Condition{
			PartitionKey:   AttrOwner,
			PartitionValue: ownerID,
			Descending:     true,
		},
		StartKey: start,
		Limit:    limit,
	}
}

// PublicApproved is the visibility index request for templates open to
// anonymous discovery. DynamoDB leaves the order within the partition
// unspecified; MemoryStore returns newest first.
func PublicApproved(limit int, start Key) Request {
	return Request{
		Index: VisibilityIndex,
		Condition: Condition{
			PartitionKey:   AttrVisibility,
			PartitionValue: string(templates.VisibilityPublic),
			SortKey:        AttrModerationStatus,
			SortValue:      string(templates.ModerationApproved),
			Descending:     true,
		},
		StartKey: start,
		Limit:    limit,
	}
}

// Validate checks that the request names an index and a partition.
func (r Request) Validate() error {
	if r.Index == "" {
		return ErrUnknownIndex
	}
	if r.Condition.PartitionKey == "" || r.Condition.PartitionValue == "" {
		return ErrInvalidRequest
	}
	if r.Condition.SortKey != "" && r.Condition.SortValue == "" {
		return ErrInvalidRequest
	}
	return nil
}
