package auth

import (
	"slices"
	"time"
)

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// AdminGroup is the user pool group whose members moderate templates.
const AdminGroup = "Admins"

// Identity represents an authenticated principal.
type Identity struct {
	// Principal is the user id (the sub claim). Empty for anonymous callers.
	Principal string

	// Email is the verified email, when the token carries one.
	Email string

	// Groups are the user pool groups the principal belongs to.
	Groups []string

	// Method indicates how authentication was performed.
	Method AuthMethod

	// Claims contains the raw claims from the token.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasGroup reports whether the identity belongs to group.
func (id *Identity) HasGroup(group string) bool {
	return id != nil && slices.Contains(id.Groups, group)
}

// IsAdmin reports whether the identity belongs to AdminGroup.
func (id *Identity) IsAdmin() bool {
	return id.HasGroup(AdminGroup)
}

// IsExpired reports whether the identity expired before now. Identities
// without an expiry never expire.
func (id *Identity) IsExpired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}

// IsAnonymous reports whether there is no authenticated principal.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == AuthMethodAnonymous || id.Principal == ""
}

// RequesterID is the principal for authenticated identities and "" for
// anonymous ones.
func (id *Identity) RequesterID() string {
	if id.IsAnonymous() {
		return ""
	}
	return id.Principal
}

// AnonymousIdentity returns a fresh anonymous identity.
func AnonymousIdentity() *Identity {
	return &Identity{
		Method: AuthMethodAnonymous,
		Claims: make(map[string]any),
	}
}
