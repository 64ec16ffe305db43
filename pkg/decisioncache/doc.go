// Package decisioncache provides the read-through cache shared by the
// entitlement and RBAC layers of the access-control gate.
//
// The gate sits on the hot path of every request, so both layers resolve
// their inputs through a cache: entitlement status keyed by (org, module)
// and effective permission sets keyed by (principal, org, role-set version).
// Two backends are provided:
//
//   - Memory: an in-process LRU with per-entry TTL and single-flight miss
//     coalescing. This is the default.
//   - Redis: a shared cache for multi-process deployments, with the same
//     single-flight semantics per process.
//
// TTL is a staleness backstop only. Correctness after an administrative
// mutation relies on explicit invalidation: the admin layer calls the
// invalidation hooks (see the entitlement and rbac packages), which remove
// or version-out the affected entries so the very next lookup observes
// fresh state.
package decisioncache
