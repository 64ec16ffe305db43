// Package permissions defines the typed permission model used by the
// access-control decision engine.
//
// A permission names a single action within a business module, written as
// "module.action" (for example "voucher.read" or "payroll.approve"). The
// only supported wildcard is the action wildcard "module.*", which grants
// every action within that module. There is no cross-module wildcard at the
// permission level; the bare pattern "*" is only meaningful to the Catalog,
// which expands it into the wildcard permission of every registered module
// when a role is loaded.
//
// Permissions are plain value types and are compared with case-sensitive
// exact matching. A Set provides the O(1) membership test used on the
// request hot path:
//
//	set := permissions.NewSet(
//		permissions.Permission{Module: "voucher", Action: "read"},
//		permissions.Wildcard("inventory"),
//	)
//	set.Allows(permissions.Permission{Module: "inventory", Action: "delete"}) // true
//	set.Allows(permissions.Permission{Module: "voucher", Action: "delete"})   // false
package permissions
