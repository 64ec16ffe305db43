// Package gate composes the three authorization layers (tenant-scope
// resolution, module entitlement and role-based permission checking) into
// the single decision every business handler calls before touching data.
//
// The order is fixed: tenant isolation first, then the resource-identity
// check, then entitlement, then RBAC. The resource-identity step implements
// the anti-enumeration policy: a request that names a resource in a foreign
// tenant fails with the same "not found" a nonexistent resource would
// produce, before entitlement or RBAC can introduce a distinguishing error
// or timing signal. Module-level denials, by contrast, disclose the missing
// permission or entitlement; no resource identity is at stake there and the
// detail helps legitimate callers.
//
// Handlers must use the organization id returned in the Grant for every
// subsequent data query; re-deriving it from the principal would bypass the
// isolation the gate just enforced.
//
// Every decision, allow or deny, is recorded to the configured audit sink.
// Recording is best effort and never affects the decision.
package gate
