package entitlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finsuite/accessgate/pkg/decisioncache"
	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/tenant"
)

var (
	// ErrModuleMissing is returned when the module is disabled or has no
	// entitlement row and is not always-on.
	ErrModuleMissing = errors.New("entitlement: module not licensed")

	// ErrModuleExpired is returned when the license or trial has run out.
	ErrModuleExpired = errors.New("entitlement: module license expired")

	// ErrUnavailable is returned when the store or cache cannot answer.
	// Fail closed: this is never an allow.
	ErrUnavailable = errors.New("entitlement: store unavailable")
)

// Checker answers "is this module licensed for this organization" through
// the shared decision cache. Safe for concurrent use.
type Checker struct {
	store Store
	cache decisioncache.Cache[Snapshot]
	now   func() time.Time

	mu       sync.RWMutex
	alwaysOn map[permissions.Module]struct{}
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithClock overrides the time source used for trial-expiry evaluation.
func WithClock(now func() time.Time) CheckerOption {
	return func(c *Checker) { c.now = now }
}

// NewChecker creates an entitlement checker backed by store and cache.
func NewChecker(store Store, cache decisioncache.Cache[Snapshot], alwaysOn []permissions.Module, opts ...CheckerOption) *Checker {
	c := &Checker{
		store:    store,
		cache:    cache,
		now:      time.Now,
		alwaysOn: make(map[permissions.Module]struct{}, len(alwaysOn)),
	}
	for _, m := range alwaysOn {
		c.alwaysOn[m] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAlwaysOn replaces the always-on allowlist. Called by the configuration
// layer on policy reload.
func (c *Checker) SetAlwaysOn(modules []permissions.Module) {
	next := make(map[permissions.Module]struct{}, len(modules))
	for _, m := range modules {
		next[m] = struct{}{}
	}
	c.mu.Lock()
	c.alwaysOn = next
	c.mu.Unlock()
}

// IsAlwaysOn reports whether the module is exempt from entitlement checks.
func (c *Checker) IsAlwaysOn(module permissions.Module) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.alwaysOn[module]
	return ok
}

// Key is the cache key for one (org, module) entitlement.
func Key(org tenant.OrgID, module permissions.Module) string {
	return fmt.Sprintf("ent:%d:%s", org, module)
}

// Check evaluates the entitlement of (org, module).
//
// Always-on modules are allowed without a lookup. Otherwise the cached
// snapshot decides: enabled and in-window trials allow (trials with the
// soft Trial flag set), everything else denies with the matching reason.
func (c *Checker) Check(ctx context.Context, org tenant.OrgID, module permissions.Module) (Result, error) {
	if c.IsAlwaysOn(module) {
		return Result{Status: StatusEnabled}, nil
	}

	snap, _, err := c.cache.GetOrLoad(ctx, Key(org, module), func(ctx context.Context) (Snapshot, error) {
		ent, err := c.store.GetEntitlement(ctx, org, module)
		if err != nil {
			return Snapshot{}, err
		}
		if ent == nil {
			return Snapshot{Status: StatusAbsent}, nil
		}
		return Snapshot{Status: ent.Status, TrialEnd: ent.TrialEnd}, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch snap.Status {
	case StatusEnabled:
		return Result{Status: StatusEnabled}, nil
	case StatusTrial:
		if snap.TrialEnd != nil && !c.now().Before(*snap.TrialEnd) {
			return Result{}, fmt.Errorf("%w: trial for module %q in org %d ended %s",
				ErrModuleExpired, module, org, snap.TrialEnd.Format(time.RFC3339))
		}
		return Result{Status: StatusTrial, Trial: true}, nil
	case StatusExpired:
		return Result{}, fmt.Errorf("%w: module %q in org %d", ErrModuleExpired, module, org)
	default:
		return Result{}, fmt.Errorf("%w: module %q in org %d", ErrModuleMissing, module, org)
	}
}

// Invalidate drops the cached entitlement for (org, module). This is the
// administrative mutation hook; the next Check reloads from the store.
func (c *Checker) Invalidate(org tenant.OrgID, module permissions.Module) {
	c.cache.Remove(Key(org, module))
}

// Warmup primes the cache with every entitlement of the given organizations.
// Used at startup and by the periodic refresher so cold caches do not stack
// store lookups onto the first requests.
func (c *Checker) Warmup(ctx context.Context, orgIDs []tenant.OrgID) error {
	for _, org := range orgIDs {
		ents, err := c.store.ListEntitlements(ctx, org)
		if err != nil {
			return fmt.Errorf("%w: warming org %d: %v", ErrUnavailable, org, err)
		}
		for _, ent := range ents {
			ent := ent
			c.cache.Remove(Key(org, ent.Module))
			_, _, err := c.cache.GetOrLoad(ctx, Key(org, ent.Module), func(context.Context) (Snapshot, error) {
				return Snapshot{Status: ent.Status, TrialEnd: ent.TrialEnd}, nil
			})
			if err != nil {
				return fmt.Errorf("%w: warming org %d: %v", ErrUnavailable, org, err)
			}
		}
	}
	return nil
}
