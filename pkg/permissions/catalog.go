package permissions

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog is the registry of known permissions, grouped by module. Role
// definitions store permission patterns as strings; the catalog turns those
// patterns into flat permission sets once, when a role is loaded, so no
// string parsing happens on the per-request check path.
//
// A Catalog is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	modules map[Module][]Action
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{modules: make(map[Module][]Action)}
}

// Register declares the actions available on a module. Registering the same
// module twice merges the action lists.
func (c *Catalog) Register(module Module, actions ...Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing := c.modules[module]
	for _, a := range actions {
		found := false
		for _, e := range existing {
			if e == a {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, a)
		}
	}
	c.modules[module] = existing
}

// Modules returns the registered module ids in sorted order.
func (c *Catalog) Modules() []Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Module, 0, len(c.modules))
	for m := range c.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether the module is registered.
func (c *Catalog) Known(module Module) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.modules[module]
	return ok
}

// Expand resolves a single permission pattern into concrete permissions:
//
//   - "*" expands to the wildcard permission of every registered module
//   - "module.*" expands to that module's wildcard permission
//   - "module.action" expands to the exact permission
//
// Expansion never enumerates individual actions for a wildcard; the Set
// membership test understands "module.*" directly, which keeps role
// closures small.
func (c *Catalog) Expand(pattern string) ([]Permission, error) {
	if pattern == "*" {
		c.mu.RLock()
		defer c.mu.RUnlock()
		out := make([]Permission, 0, len(c.modules))
		for m := range c.modules {
			out = append(out, Wildcard(m))
		}
		return out, nil
	}
	p, err := Parse(pattern)
	if err != nil {
		return nil, err
	}
	return []Permission{p}, nil
}

// ExpandAll resolves a list of permission patterns into a flat Set. Unknown
// patterns fail the whole expansion; a role with a malformed permission is a
// configuration error, not something to silently skip.
func (c *Catalog) ExpandAll(patterns []string) (Set, error) {
	set := make(Set, len(patterns))
	for _, pattern := range patterns {
		perms, err := c.Expand(pattern)
		if err != nil {
			return nil, fmt.Errorf("permissions: expanding pattern %q: %w", pattern, err)
		}
		for _, p := range perms {
			set.Add(p)
		}
	}
	return set, nil
}

// CRUDActions are the baseline actions most business modules expose.
var CRUDActions = []Action{"create", "read", "update", "delete"}

// SuiteCatalog returns a catalog preloaded with the business suite's module
// surface. Callers embedding the engine in a different product register
// their own modules instead.
func SuiteCatalog() *Catalog {
	c := NewCatalog()
	for _, m := range []Module{
		"voucher", "inventory", "payroll", "crm",
		"manufacturing", "accounting", "reports", "settings",
	} {
		c.Register(m, CRUDActions...)
	}
	c.Register("voucher", "approve", "post")
	c.Register("payroll", "approve", "disburse")
	c.Register("reports", "export")
	c.Register("auth_login", "read")
	return c
}
