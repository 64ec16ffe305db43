// Package entitlement implements per-organization module licensing checks,
// the second layer of the access-control gate.
//
// Each organization holds a ModuleEntitlement row per licensed module with a
// status of enabled, trialing, expired or disabled; a missing row behaves as
// disabled. Modules on the always-on allowlist (login, core settings) are
// exempt from entitlement entirely and never touch the store.
//
// Lookups go through the shared decision cache with single-flight miss
// coalescing. A store or cache failure is surfaced as ErrUnavailable and is
// never treated as an allow.
package entitlement
