package gate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/tenant"
)

// Kind classifies an access failure. Kinds are stable strings; they appear
// in audit records and API responses.
type Kind string

const (
	// KindUnauthenticated means no principal accompanied the request. The
	// identity layer upstream normally rejects these before the gate runs.
	KindUnauthenticated Kind = "unauthenticated"

	// KindTenantIsolation means a non-super-admin explicitly requested a
	// foreign organization.
	KindTenantIsolation Kind = "tenant_isolation_violation"

	// KindResourceNotFound is the anti-enumeration substitute: the request
	// named a specific resource that either does not exist or lives in a
	// foreign tenant, and the caller must not learn which.
	KindResourceNotFound Kind = "resource_not_found"

	// KindEntitlementMissing means the module is disabled or not licensed
	// for the organization.
	KindEntitlementMissing Kind = "entitlement_missing"

	// KindEntitlementExpired means the module license or trial ran out.
	KindEntitlementExpired Kind = "entitlement_expired"

	// KindPermissionDenied means the principal's roles do not grant the
	// required permission.
	KindPermissionDenied Kind = "permission_denied"

	// KindUnavailable means the decision could not be made because a
	// backing store failed. Never an allow; eligible for one retry.
	KindUnavailable Kind = "service_unavailable"
)

// AccessError is the typed failure returned by Gate.
type AccessError struct {
	Kind   Kind
	Module permissions.Module
	Action permissions.Action
	OrgID  tenant.OrgID
	err    error
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("gate: %s: %v", e.Kind, e.err)
	}
	return fmt.Sprintf("gate: %s", e.Kind)
}

// Unwrap returns the underlying layer error for errors.Is/As.
func (e *AccessError) Unwrap() error {
	return e.err
}

// PublicMessage returns the message safe to surface to the caller.
// Module-level denials name the module and required permission to aid
// legitimate troubleshooting; resource denials disclose nothing beyond
// "not found".
func (e *AccessError) PublicMessage() string {
	switch e.Kind {
	case KindResourceNotFound:
		return "resource not found"
	case KindUnauthenticated:
		return "authentication required"
	case KindTenantIsolation:
		return "organization out of scope"
	case KindEntitlementMissing:
		return fmt.Sprintf("module %q is not enabled for this organization", e.Module)
	case KindEntitlementExpired:
		return fmt.Sprintf("the license for module %q has expired", e.Module)
	case KindPermissionDenied:
		return fmt.Sprintf("missing permission %q", permissions.Permission{Module: e.Module, Action: e.Action})
	case KindUnavailable:
		return "access decision temporarily unavailable"
	default:
		return "access denied"
	}
}

// KindOf extracts the failure kind from an error, or "" when err is not an
// AccessError.
func KindOf(err error) Kind {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// ErrorStatus maps an access failure to its transport status code, per the
// disclosure policy: cross-tenant resource probes look like missing
// resources, module-level denials are forbidden, transient failures invite
// a retry.
func ErrorStatus(err error) int {
	switch KindOf(err) {
	case KindResourceNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTenantIsolation, KindEntitlementMissing, KindEntitlementExpired, KindPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func newAccessError(kind Kind, module permissions.Module, action permissions.Action, org tenant.OrgID, err error) *AccessError {
	return &AccessError{
		Kind:   kind,
		Module: module,
		Action: action,
		OrgID:  org,
		err:    err,
	}
}
