package auth

import (
	"strings"
	"time"
)

// AuthMethod records how an identity was established.
type AuthMethod string

const (
	AuthMethodNone      AuthMethod = "none"
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAPIKey    AuthMethod = "api_key"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity is an authenticated principal. Principals follow the
// platform's user@domain convention ("alice@co", "migration@co",
// "indexing-service@internal"); the domain part drives author-class
// policy such as the oversize-commit bypass list.
type Identity struct {
	// Principal uniquely identifies the caller.
	Principal string

	// Roles grant coarse platform capabilities (see rbac.go).
	Roles []string

	// Method is how this identity was authenticated.
	Method AuthMethod

	// Claims carries the raw token claims or key metadata.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Domain returns the part of the principal after '@', or "" when the
// principal carries no domain.
func (id *Identity) Domain() string {
	if i := strings.IndexByte(id.Principal, '@'); i >= 0 {
		return id.Principal[i+1:]
	}
	return ""
}

// HasRole reports whether role is among the identity's roles.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsExpired reports whether the identity's credential has lapsed.
// A zero ExpiresAt never expires.
func (id *Identity) IsExpired() bool {
	return !id.ExpiresAt.IsZero() && time.Now().After(id.ExpiresAt)
}

// IsAnonymous reports whether this identity carries no real principal.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// AnonymousIdentity is the identity attached to unauthenticated
// requests; read paths accept it, write paths reject it.
func AnonymousIdentity() *Identity {
	return &Identity{Principal: "anonymous", Method: AuthMethodAnonymous, Claims: map[string]any{}}
}
