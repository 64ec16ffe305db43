package gate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finsuite/accessgate/pkg/audit"
	"github.com/finsuite/accessgate/pkg/entitlement"
	"github.com/finsuite/accessgate/pkg/observability"
	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/rbac"
	"github.com/finsuite/accessgate/pkg/tenant"
)

// Grant is the positive outcome of a gate decision. Handlers must scope
// every subsequent query to Grant.OrgID.
type Grant struct {
	// Principal is the effective principal, including any bypass promotion
	// applied during the decision.
	Principal *tenant.Principal

	// OrgID is the resolved organization scope of the request.
	OrgID tenant.OrgID

	// Trial is set when the allow rode on an in-window trial entitlement.
	// Callers may surface it ("X days left") but must not treat it as a
	// denial.
	Trial bool
}

// Composer evaluates the layered access decision. Safe for concurrent use.
type Composer struct {
	resolver    *tenant.Resolver
	entitlement *entitlement.Checker
	rbac        *rbac.Checker

	sink    audit.Sink
	logger  *observability.Logger
	metrics *Metrics
	now     func() time.Time

	// bypassRoles promotes principals holding any of these roles to the
	// super-admin bypass class, for identity layers that convey roles but
	// not bypass classification. Guarded for policy hot reload.
	mu          sync.RWMutex
	bypassRoles map[tenant.RoleID]struct{}
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithAuditSink sets the decision recorder. Defaults to audit.NopSink.
func WithAuditSink(sink audit.Sink) ComposerOption {
	return func(c *Composer) { c.sink = sink }
}

// WithLogger sets the service logger.
func WithLogger(logger *observability.Logger) ComposerOption {
	return func(c *Composer) { c.logger = logger }
}

// WithMetrics sets the decision metrics.
func WithMetrics(m *Metrics) ComposerOption {
	return func(c *Composer) { c.metrics = m }
}

// WithBypassRoles declares role ids whose holders receive the super-admin
// bypass.
func WithBypassRoles(roles []tenant.RoleID) ComposerOption {
	return func(c *Composer) { c.bypassRoles = bypassSet(roles) }
}

func bypassSet(roles []tenant.RoleID) map[tenant.RoleID]struct{} {
	set := make(map[tenant.RoleID]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func withClock(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

// NewComposer creates the composer over the three layer checkers.
func NewComposer(resolver *tenant.Resolver, ent *entitlement.Checker, rb *rbac.Checker, opts ...ComposerOption) *Composer {
	c := &Composer{
		resolver:    resolver,
		entitlement: ent,
		rbac:        rb,
		sink:        audit.NopSink{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallOption scopes a single Gate call.
type CallOption func(*callOptions)

type callOptions struct {
	targetOrg   *tenant.OrgID
	resourceOrg *tenant.OrgID
}

// WithTargetOrg names the organization the caller wants to act within.
// Omitted, the principal's home organization is used.
func WithTargetOrg(org tenant.OrgID) CallOption {
	return func(o *callOptions) { o.targetOrg = &org }
}

// WithResourceOrg supplies the owning organization of the specific resource
// the request addresses, as looked up by the handler. A mismatch with the
// resolved scope denies as "not found" rather than "forbidden" so callers
// cannot probe for resource existence across tenants.
func WithResourceOrg(org tenant.OrgID) CallOption {
	return func(o *callOptions) { o.resourceOrg = &org }
}

// Gate runs the layered decision for (principal, module, action) and
// returns a Grant on allow or an *AccessError on deny.
//
// The layers run in fixed order: tenant-scope resolution, resource-identity
// check, entitlement, RBAC. Super-admins skip the entitlement and RBAC
// layers but never tenant resolution. A transient store failure gets one
// retry before surfacing as KindUnavailable; it is never converted to an
// allow. Gate is read-only and idempotent.
func (c *Composer) Gate(ctx context.Context, p *tenant.Principal, module permissions.Module, action permissions.Action, opts ...CallOption) (*Grant, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	start := c.now()
	p = c.promote(p)

	d := audit.NewDecision()
	d.Module = module
	d.Action = action
	d.ResourceOrgID = co.resourceOrg
	if p != nil {
		d.PrincipalID = p.ID
	}

	grant, err := c.decide(ctx, p, module, action, &co)
	elapsed := c.now().Sub(start).Seconds()

	if err != nil {
		// Context errors are the caller's cancellation, not a decision;
		// they are neither audited nor counted.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var ae *AccessError
		if !errors.As(err, &ae) {
			ae = newAccessError(KindUnavailable, module, action, 0, err)
		}
		d.OrgID = ae.OrgID
		d.Outcome = audit.OutcomeDeny
		if ae.Kind == KindUnavailable {
			d.Outcome = audit.OutcomeError
		}
		d.Layer = layerOf(ae.Kind)
		d.Reason = string(ae.Kind)
		c.record(ctx, d)
		c.metrics.observe(d.Outcome, d.Layer, elapsed, false)
		return nil, ae
	}

	d.OrgID = grant.OrgID
	d.Outcome = audit.OutcomeAllow
	d.Trial = grant.Trial
	c.record(ctx, d)
	c.metrics.observe(audit.OutcomeAllow, audit.LayerNone, elapsed, grant.Trial)
	return grant, nil
}

func (c *Composer) decide(ctx context.Context, p *tenant.Principal, module permissions.Module, action permissions.Action, co *callOptions) (*Grant, error) {
	// Layer 1: tenant-scope resolution. Applies to everyone, super-admins
	// included.
	org, err := c.resolver.Resolve(p, co.targetOrg)
	if err != nil {
		if errors.Is(err, tenant.ErrNoPrincipal) {
			return nil, newAccessError(KindUnauthenticated, module, action, 0, err)
		}
		return nil, newAccessError(KindTenantIsolation, module, action, 0, err)
	}

	// Layer 2: resource identity. A resource owned by a foreign tenant is
	// indistinguishable from one that does not exist. Super-admins see the
	// real scope instead: the grant follows the resource's organization.
	if co.resourceOrg != nil && *co.resourceOrg != org {
		if !p.IsSuperAdmin() {
			return nil, newAccessError(KindResourceNotFound, module, action, org, nil)
		}
		org = *co.resourceOrg
	}

	if p.IsSuperAdmin() {
		return &Grant{Principal: p, OrgID: org}, nil
	}

	// Layer 3: entitlement.
	result, err := c.checkEntitlement(ctx, org, module)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, entitlement.ErrModuleExpired):
			return nil, newAccessError(KindEntitlementExpired, module, action, org, err)
		case errors.Is(err, entitlement.ErrModuleMissing):
			return nil, newAccessError(KindEntitlementMissing, module, action, org, err)
		default:
			return nil, newAccessError(KindUnavailable, module, action, org, err)
		}
	}

	// Layer 4: RBAC.
	required := permissions.Permission{Module: module, Action: action}
	if err := c.checkRBAC(ctx, p, org, required); err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, rbac.ErrPermissionDenied):
			return nil, newAccessError(KindPermissionDenied, module, action, org, err)
		default:
			return nil, newAccessError(KindUnavailable, module, action, org, err)
		}
	}

	return &Grant{Principal: p, OrgID: org, Trial: result.Trial}, nil
}

// checkEntitlement gives a transient store failure one immediate retry.
func (c *Composer) checkEntitlement(ctx context.Context, org tenant.OrgID, module permissions.Module) (entitlement.Result, error) {
	result, err := c.entitlement.Check(ctx, org, module)
	if errors.Is(err, entitlement.ErrUnavailable) && ctx.Err() == nil {
		result, err = c.entitlement.Check(ctx, org, module)
	}
	return result, err
}

// checkRBAC gives a transient store failure one immediate retry.
func (c *Composer) checkRBAC(ctx context.Context, p *tenant.Principal, org tenant.OrgID, required permissions.Permission) error {
	err := c.rbac.Check(ctx, p, org, required)
	if errors.Is(err, rbac.ErrUnavailable) && ctx.Err() == nil {
		err = c.rbac.Check(ctx, p, org, required)
	}
	return err
}

// SetBypassRoles replaces the bypass role set. Called by the configuration
// layer on policy reload.
func (c *Composer) SetBypassRoles(roles []tenant.RoleID) {
	set := bypassSet(roles)
	c.mu.Lock()
	c.bypassRoles = set
	c.mu.Unlock()
}

// promote returns the principal with the super-admin bypass applied when it
// holds a configured bypass role. The input is never mutated.
func (c *Composer) promote(p *tenant.Principal) *tenant.Principal {
	if p == nil || p.IsSuperAdmin() {
		return p
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.bypassRoles) == 0 {
		return p
	}
	for _, r := range p.RoleIDs {
		if _, ok := c.bypassRoles[r]; ok {
			promoted := *p
			promoted.Bypass = tenant.BypassSuperAdmin
			return &promoted
		}
	}
	return p
}

// record emits the decision to the audit sink. Best effort: a sink failure
// is logged and otherwise ignored.
func (c *Composer) record(ctx context.Context, d *audit.Decision) {
	if err := c.sink.Record(context.WithoutCancel(ctx), d); err != nil && c.logger != nil {
		c.logger.WithError(err).WithField("decision_id", d.ID).Warn("audit record failed")
	}
}

func layerOf(kind Kind) audit.Layer {
	switch kind {
	case KindUnauthenticated, KindTenantIsolation:
		return audit.LayerTenant
	case KindResourceNotFound:
		return audit.LayerResource
	case KindEntitlementMissing, KindEntitlementExpired:
		return audit.LayerEntitlement
	case KindPermissionDenied:
		return audit.LayerRBAC
	default:
		return audit.LayerNone
	}
}
