package templates

import "time"

// Visibility controls who can list a template.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ModerationStatus is the admin review state of a template.
type ModerationStatus string

const (
	ModerationPending     ModerationStatus = "pending"
	ModerationApproved    ModerationStatus = "approved"
	ModerationRejected    ModerationStatus = "rejected"
	ModerationNotRequired ModerationStatus = "not_required"
)

// Template is a shareable prompt template. Discovery code treats it as read-only.
type Template struct {
	ID               string           `json:"templateId"`
	Title            string           `json:"title"`
	Content          string           `json:"content"`
	Tags             []string         `json:"tags,omitempty"`
	Variables        []string         `json:"variables,omitempty"`
	Visibility       Visibility       `json:"visibility"`
	ModerationStatus ModerationStatus `json:"moderationStatus"`
	OwnerID          string           `json:"userId"`
	AuthorEmail      string           `json:"authorEmail,omitempty"`
	Category         string           `json:"category,omitempty"`
	Format           string           `json:"format,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt,omitempty"`
	ViewCount        int              `json:"viewCount"`
	UseCount         int              `json:"useCount"`
}

// IsPublic reports whether the template is eligible for anonymous discovery.
func (t *Template) IsPublic() bool {
	return t.Visibility == VisibilityPublic && t.ModerationStatus == ModerationApproved
}

// IsOwnedBy reports whether requesterID owns the template.
func (t *Template) IsOwnedBy(requesterID string) bool {
	return requesterID != "" && t.OwnerID == requesterID
}

// VisibleTo reports whether requesterID may see the template. Owners always
// see their own templates regardless of moderation state.
func (t *Template) VisibleTo(requesterID string) bool {
	return t.IsPublic() || t.IsOwnedBy(requesterID)
}

// HasTag reports whether the template carries tag, ignoring case.
func (t *Template) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if equalFold(have, tag) {
			return true
		}
	}
	return false
}

// Popularity is the combined engagement count used to pick between duplicates.
func (t *Template) Popularity() int {
	return t.ViewCount + t.UseCount
}
