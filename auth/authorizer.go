package auth

import (
	"context"
	"fmt"
)

// API actions checked by the operator API.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// Authorizer decides whether an identity may perform an action.
type Authorizer interface {
	// Authorize returns nil when allowed, else an error matching
	// ErrForbidden.
	Authorize(ctx context.Context, id *Identity, action string) error
}

// AuthzError describes a denial.
type AuthzError struct {
	Principal string
	Action    string
	Reason    string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("auth: %q may not %s: %s", e.Principal, e.Action, e.Reason)
}

// Is matches ErrForbidden.
func (e *AuthzError) Is(target error) bool {
	return target == ErrForbidden
}

// RoleAuthorizer grants each action to a set of roles.
type RoleAuthorizer struct {
	grants map[string][]string
}

// NewRoleAuthorizer creates an authorizer from action → roles.
func NewRoleAuthorizer(grants map[string][]string) *RoleAuthorizer {
	return &RoleAuthorizer{grants: grants}
}

// DefaultRoleAuthorizer lets viewers and operators read and only
// operators write.
func DefaultRoleAuthorizer() *RoleAuthorizer {
	return NewRoleAuthorizer(map[string][]string{
		ActionRead:  {RoleViewer, RoleOperator},
		ActionWrite: {RoleOperator},
	})
}

// Authorize allows id when it holds any role granted the action.
func (a *RoleAuthorizer) Authorize(_ context.Context, id *Identity, action string) error {
	if id == nil {
		return &AuthzError{Action: action, Reason: "not authenticated"}
	}
	for _, role := range a.grants[action] {
		if id.HasRole(role) {
			return nil
		}
	}
	return &AuthzError{Principal: id.Principal, Action: action, Reason: "no granted role"}
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, id *Identity, action string) error

// Authorize calls f.
func (f AuthorizerFunc) Authorize(ctx context.Context, id *Identity, action string) error {
	return f(ctx, id, action)
}

var _ Authorizer = (*RoleAuthorizer)(nil)
