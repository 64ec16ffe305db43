// Package tenant defines the principal model and the tenant-scope resolver,
// the first layer of the access-control gate.
//
// Every business resource belongs to exactly one organization, and a
// principal may only act within its home organization unless it carries the
// super-admin bypass class. The resolver turns an optional explicit target
// organization into the single effective organization id that every
// downstream layer (entitlement, RBAC, data access) must use.
package tenant
