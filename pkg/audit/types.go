package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/tenant"
)

// Outcome is the result of a decision.
type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeDeny  Outcome = "deny"
	// OutcomeError marks decisions that failed for transient reasons
	// (store unavailable) rather than policy.
	OutcomeError Outcome = "error"
)

// Layer names the gate layer that produced a denial.
type Layer string

const (
	LayerTenant      Layer = "tenant"
	LayerResource    Layer = "resource"
	LayerEntitlement Layer = "entitlement"
	LayerRBAC        Layer = "rbac"
	// LayerNone is used on allows.
	LayerNone Layer = ""
)

// Decision is one access-decision record. It is ephemeral: emitted to the
// sink and never read back by the engine.
type Decision struct {
	ID          string             `json:"id"`
	Time        time.Time          `json:"time"`
	PrincipalID tenant.PrincipalID `json:"principal_id"`
	OrgID       tenant.OrgID       `json:"org_id"`
	Module      permissions.Module `json:"module"`
	Action      permissions.Action `json:"action"`

	// ResourceOrgID is set when the call guarded a specific resource.
	ResourceOrgID *tenant.OrgID `json:"resource_org_id,omitempty"`

	Outcome Outcome `json:"outcome"`
	Layer   Layer   `json:"layer,omitempty"`
	Reason  string  `json:"reason,omitempty"`
	Trial   bool    `json:"trial,omitempty"`
}

// NewDecision creates a decision record with a fresh id and timestamp.
func NewDecision() *Decision {
	return &Decision{
		ID:   uuid.NewString(),
		Time: time.Now().UTC(),
	}
}

// Sink is the append-only decision recorder. Record must be cheap and must
// never panic; callers ignore its error beyond logging.
type Sink interface {
	Record(ctx context.Context, d *Decision) error
}

// NopSink discards every decision.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, *Decision) error { return nil }
