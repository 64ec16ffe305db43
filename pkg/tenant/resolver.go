package tenant

import (
	"errors"
	"fmt"
)

// ErrIsolationViolation is returned when a non-super-admin principal
// requests an organization other than its own.
var ErrIsolationViolation = errors.New("tenant: isolation violation")

// ErrNoPrincipal is returned when Resolve is called without a principal.
var ErrNoPrincipal = errors.New("tenant: no principal")

// Resolver resolves the effective organization for a request. It is a pure
// function of its inputs and performs no I/O, so it needs no cache.
type Resolver struct{}

// NewResolver creates a tenant-scope resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the organization the request is allowed to act in.
//
// Without an explicit target the principal's home organization is used. An
// explicit target equal to the home organization is a no-op. A different
// explicit target is granted only to super-admins; everyone else fails with
// ErrIsolationViolation.
func (r *Resolver) Resolve(p *Principal, explicitTarget *OrgID) (OrgID, error) {
	if p == nil {
		return 0, ErrNoPrincipal
	}
	if explicitTarget == nil {
		return p.HomeOrgID, nil
	}
	if *explicitTarget == p.HomeOrgID {
		return p.HomeOrgID, nil
	}
	if p.IsSuperAdmin() {
		return *explicitTarget, nil
	}
	return 0, fmt.Errorf("%w: principal %d (org %d) requested org %d",
		ErrIsolationViolation, p.ID, p.HomeOrgID, *explicitTarget)
}
