package entitlement

import (
	"context"
	"time"

	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/tenant"
)

// Status is the licensing state of a module within an organization.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusTrial    Status = "trial"
	StatusExpired  Status = "expired"
	StatusDisabled Status = "disabled"
	// StatusAbsent is the synthetic status for a missing entitlement row.
	// Outside the always-on allowlist it behaves exactly like disabled.
	StatusAbsent Status = "absent"
)

// Entitlement is one (organization, module) licensing row, administered by
// the out-of-band admin layer and only read here.
type Entitlement struct {
	OrgID     tenant.OrgID       `json:"org_id"`
	Module    permissions.Module `json:"module"`
	Status    Status             `json:"status"`
	TrialEnd  *time.Time         `json:"trial_end,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Snapshot is the cached shape of an entitlement: just what evaluation
// needs, so trial expiry is re-evaluated on every check rather than frozen
// at cache-fill time.
type Snapshot struct {
	Status   Status     `json:"status"`
	TrialEnd *time.Time `json:"trial_end,omitempty"`
}

// Result is a successful entitlement check. Trial is a soft informational
// flag surfaced to callers (e.g. for a banner), never a denial.
type Result struct {
	Status Status `json:"status"`
	Trial  bool   `json:"trial,omitempty"`
}

// Store reads entitlement rows from the administrative store.
type Store interface {
	// GetEntitlement returns the row for (org, module), or (nil, nil) when
	// no row exists.
	GetEntitlement(ctx context.Context, org tenant.OrgID, module permissions.Module) (*Entitlement, error)

	// ListEntitlements returns every row for an organization. Used by cache
	// warmup, not by the per-request path.
	ListEntitlements(ctx context.Context, org tenant.OrgID) ([]Entitlement, error)
}
