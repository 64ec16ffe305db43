// Package rbac implements role-based permission checking, the final layer
// of the access-control gate.
//
// Roles are administered out of band and only read here. Each role carries a
// list of permission patterns ("voucher.read", "inventory.*", or the bare
// "*") and an integer level; a role configured to inherit lower levels
// subsumes the permissions of every role below it in the same scope. That
// hierarchy is flattened into one permission set when a principal's roles
// are loaded into the decision cache, so the per-request check is an O(1)
// set membership test, never a graph walk.
//
// Cache entries are keyed by (principal, org, role-set version). The
// administrative invalidation hook bumps the organization's version, which
// makes every cached closure for that organization unreachable on the very
// next check; TTL handles the rest.
//
// Super-admin principals bypass RBAC entirely. They do not bypass
// tenant-scope resolution; that exemption is deliberately narrow.
package rbac
