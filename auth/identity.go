package auth

import (
	"slices"
	"time"
)

// Method records how an identity was authenticated.
type Method string

const (
	MethodAPIKey Method = "api_key"
	MethodJWT    Method = "jwt"
)

// Roles understood by RoleAuthorizer.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

// Identity is an authenticated caller.
type Identity struct {
	Principal string
	Roles     []string
	Method    Method

	// Claims holds token claims, or key metadata for API keys.
	Claims map[string]any

	// ExpiresAt is zero for credentials that never expire.
	ExpiresAt time.Time
}

// HasRole reports whether role was granted directly.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// ExpiredAt reports whether the identity has expired at now.
func (id *Identity) ExpiredAt(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && !now.Before(id.ExpiresAt)
}
