package rbac

import (
	"context"
	"time"

	"github.com/finsuite/accessgate/pkg/tenant"
)

// Role is a named collection of permission patterns scoped to one
// organization, or system-wide when OrgID is nil.
type Role struct {
	ID   tenant.RoleID `json:"id"`
	Name string        `json:"name"`

	// OrgID scopes the role to one organization; nil means system-wide.
	OrgID *tenant.OrgID `json:"org_id,omitempty"`

	// Level orders roles within a scope; higher means more authority.
	Level int `json:"level"`

	// InheritsLower makes the role subsume the permissions of every role
	// at a strictly lower level in its scope. Resolved once at load time
	// into a flat closure, never walked per request.
	InheritsLower bool `json:"inherits_lower"`

	// Permissions holds patterns: "module.action", "module.*", or "*".
	Permissions []string `json:"permissions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store reads role definitions and assignments from the administrative
// store.
type Store interface {
	// GetRolesForPrincipal returns the roles assigned to the principal that
	// are visible within org: org-scoped roles plus system-wide ones.
	GetRolesForPrincipal(ctx context.Context, principal tenant.PrincipalID, org tenant.OrgID) ([]Role, error)

	// GetRolesBelowLevel returns every role visible within org whose level
	// is strictly below the given level. Used to flatten inheritance.
	GetRolesBelowLevel(ctx context.Context, org tenant.OrgID, level int) ([]Role, error)
}
