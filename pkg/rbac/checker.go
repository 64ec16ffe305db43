package rbac

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/finsuite/accessgate/pkg/decisioncache"
	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/tenant"
)

var (
	// ErrPermissionDenied is returned when the principal's effective
	// permission set does not satisfy the required permission.
	ErrPermissionDenied = errors.New("rbac: permission denied")

	// ErrUnavailable is returned when the store or cache cannot answer.
	// Fail closed: this is never an allow.
	ErrUnavailable = errors.New("rbac: store unavailable")
)

// Checker resolves a principal's effective permission set within an
// organization and tests membership of a required permission. Safe for
// concurrent use.
type Checker struct {
	store   Store
	catalog *permissions.Catalog
	cache   decisioncache.Cache[permissions.Set]

	// versions holds the monotonic role-set version per organization. The
	// version is part of the cache key, so bumping it retires every cached
	// closure for that organization without touching the cache itself.
	mu       sync.RWMutex
	versions map[tenant.OrgID]uint64
}

// NewChecker creates an RBAC checker backed by store and cache.
func NewChecker(store Store, catalog *permissions.Catalog, cache decisioncache.Cache[permissions.Set]) *Checker {
	return &Checker{
		store:    store,
		catalog:  catalog,
		cache:    cache,
		versions: make(map[tenant.OrgID]uint64),
	}
}

func (c *Checker) version(org tenant.OrgID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[org]
}

// Key is the cache key for a principal's closure at the given role-set
// version.
func Key(principal tenant.PrincipalID, org tenant.OrgID, version uint64) string {
	return fmt.Sprintf("rbac:%d:%d:v%d", principal, org, version)
}

// Check reports whether the principal holds the required permission within
// org. Super-admins are allowed without a lookup.
func (c *Checker) Check(ctx context.Context, p *tenant.Principal, org tenant.OrgID, required permissions.Permission) error {
	if p.IsSuperAdmin() {
		return nil
	}

	set, err := c.EffectivePermissions(ctx, p.ID, org)
	if err != nil {
		return err
	}
	if !set.Allows(required) {
		return fmt.Errorf("%w: principal %d lacks %s in org %d",
			ErrPermissionDenied, p.ID, required, org)
	}
	return nil
}

// EffectivePermissions returns the flattened permission closure of every
// role assigned to the principal within org, resolved through the decision
// cache.
func (c *Checker) EffectivePermissions(ctx context.Context, principal tenant.PrincipalID, org tenant.OrgID) (permissions.Set, error) {
	key := Key(principal, org, c.version(org))

	set, _, err := c.cache.GetOrLoad(ctx, key, func(ctx context.Context) (permissions.Set, error) {
		return c.resolveClosure(ctx, principal, org)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return set, nil
}

// resolveClosure flattens the principal's roles, including inherited
// lower-level roles, into one permission set.
func (c *Checker) resolveClosure(ctx context.Context, principal tenant.PrincipalID, org tenant.OrgID) (permissions.Set, error) {
	roles, err := c.store.GetRolesForPrincipal(ctx, principal, org)
	if err != nil {
		return nil, err
	}

	set := make(permissions.Set)
	inheritFrom := -1
	for _, role := range roles {
		expanded, err := c.catalog.ExpandAll(role.Permissions)
		if err != nil {
			return nil, fmt.Errorf("role %q (%d): %w", role.Name, role.ID, err)
		}
		set.Merge(expanded)
		if role.InheritsLower && role.Level > inheritFrom {
			inheritFrom = role.Level
		}
	}

	// One query covers every inheriting role: the highest inheriting level
	// subsumes all lower levels.
	if inheritFrom >= 0 {
		lower, err := c.store.GetRolesBelowLevel(ctx, org, inheritFrom)
		if err != nil {
			return nil, err
		}
		for _, role := range lower {
			expanded, err := c.catalog.ExpandAll(role.Permissions)
			if err != nil {
				return nil, fmt.Errorf("role %q (%d): %w", role.Name, role.ID, err)
			}
			set.Merge(expanded)
		}
	}
	return set, nil
}

// Invalidate bumps the organization's role-set version so every cached
// closure for that organization is recomputed on the next check. This is
// the administrative mutation hook for role and assignment changes; it is
// deliberately org-coarse, which keeps a principal-level change safe at the
// cost of re-resolving the organization's other principals once.
func (c *Checker) Invalidate(org tenant.OrgID) {
	c.mu.Lock()
	c.versions[org]++
	c.mu.Unlock()
}
