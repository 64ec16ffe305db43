package tenant

import (
	"context"
	"time"
)

// OrgID identifies an organization (tenant).
type OrgID int64

// PrincipalID identifies an authenticated actor.
type PrincipalID int64

// RoleID identifies a role definition.
type RoleID int64

// BypassClass classifies a principal's exemption from RBAC and entitlement
// checks. Super-admins still pass through tenant-scope resolution; the
// bypass grants cross-organization requests, it does not skip them.
type BypassClass string

const (
	BypassNone       BypassClass = "none"
	BypassSuperAdmin BypassClass = "super_admin"
)

// Principal is the authenticated actor making a request. It is produced by
// the identity layer upstream of this engine and is immutable for the
// lifetime of a request.
type Principal struct {
	ID        PrincipalID `json:"id"`
	HomeOrgID OrgID       `json:"home_org_id"`
	RoleIDs   []RoleID    `json:"role_ids,omitempty"`
	Bypass    BypassClass `json:"bypass,omitempty"`
}

// IsSuperAdmin reports whether the principal carries the super-admin bypass.
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Bypass == BypassSuperAdmin
}

// HasRole reports whether the principal is assigned the given role.
func (p *Principal) HasRole(id RoleID) bool {
	if p == nil {
		return false
	}
	for _, r := range p.RoleIDs {
		if r == id {
			return true
		}
	}
	return false
}

// Organization is the isolation boundary. Only the fields the decision
// engine reads are modeled here; administrative attributes live in the
// admin layer.
type Organization struct {
	ID        OrgID     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// contextKey is the type for context keys
type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal adds a principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal from context, or nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}
