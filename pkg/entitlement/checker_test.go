package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/finsuite/accessgate/pkg/decisioncache"
	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/tenant"
)

type fakeStore struct {
	rows    map[string]*Entitlement
	err     error
	lookups int

	// onGet, when set, runs after the row is read but before it is
	// returned, so tests can hold a load in flight.
	onGet func()
}

func entKey(org tenant.OrgID, module permissions.Module) string {
	return Key(org, module)
}

func (f *fakeStore) GetEntitlement(ctx context.Context, org tenant.OrgID, module permissions.Module) (*Entitlement, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	ent := f.rows[entKey(org, module)]
	if f.onGet != nil {
		f.onGet()
	}
	return ent, nil
}

func (f *fakeStore) ListEntitlements(ctx context.Context, org tenant.OrgID) ([]Entitlement, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Entitlement
	for _, e := range f.rows {
		if e.OrgID == org {
			out = append(out, *e)
		}
	}
	return out, nil
}

func newTestChecker(t *testing.T, store Store, alwaysOn []permissions.Module, opts ...CheckerOption) *Checker {
	t.Helper()
	cache, err := decisioncache.NewMemory[Snapshot](64, time.Minute)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	return NewChecker(store, cache, alwaysOn, opts...)
}

func TestCheckEnabled(t *testing.T) {
	store := &fakeStore{rows: map[string]*Entitlement{
		entKey(1, "crm"): {OrgID: 1, Module: "crm", Status: StatusEnabled},
	}}
	c := newTestChecker(t, store, nil)

	res, err := c.Check(context.Background(), 1, "crm")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Status != StatusEnabled || res.Trial {
		t.Errorf("Check = %+v, want enabled", res)
	}
}

func TestCheckTrialSoftFlag(t *testing.T) {
	end := time.Now().Add(24 * time.Hour)
	store := &fakeStore{rows: map[string]*Entitlement{
		entKey(1, "crm"): {OrgID: 1, Module: "crm", Status: StatusTrial, TrialEnd: &end},
	}}
	c := newTestChecker(t, store, nil)

	res, err := c.Check(context.Background(), 1, "crm")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.Trial {
		t.Error("in-window trial should set the soft Trial flag")
	}
}

func TestCheckTrialEnded(t *testing.T) {
	now := time.Now()
	end := now.Add(-time.Hour)
	store := &fakeStore{rows: map[string]*Entitlement{
		entKey(1, "crm"): {OrgID: 1, Module: "crm", Status: StatusTrial, TrialEnd: &end},
	}}
	c := newTestChecker(t, store, nil, WithClock(func() time.Time { return now }))

	_, err := c.Check(context.Background(), 1, "crm")
	if !errors.Is(err, ErrModuleExpired) {
		t.Fatalf("Check err = %v, want ErrModuleExpired", err)
	}
}

func TestCheckExpired(t *testing.T) {
	store := &fakeStore{rows: map[string]*Entitlement{
		entKey(1, "manufacturing"): {OrgID: 1, Module: "manufacturing", Status: StatusExpired},
	}}
	c := newTestChecker(t, store, nil)

	_, err := c.Check(context.Background(), 1, "manufacturing")
	if !errors.Is(err, ErrModuleExpired) {
		t.Fatalf("Check err = %v, want ErrModuleExpired", err)
	}
}

func TestCheckDisabledAndAbsent(t *testing.T) {
	store := &fakeStore{rows: map[string]*Entitlement{
		entKey(1, "payroll"): {OrgID: 1, Module: "payroll", Status: StatusDisabled},
	}}
	c := newTestChecker(t, store, nil)

	if _, err := c.Check(context.Background(), 1, "payroll"); !errors.Is(err, ErrModuleMissing) {
		t.Fatalf("disabled: err = %v, want ErrModuleMissing", err)
	}
	// No row at all behaves the same as disabled.
	if _, err := c.Check(context.Background(), 1, "inventory"); !errors.Is(err, ErrModuleMissing) {
		t.Fatalf("absent: err = %v, want ErrModuleMissing", err)
	}
}

func TestCheckAlwaysOnSkipsStore(t *testing.T) {
	store := &fakeStore{}
	c := newTestChecker(t, store, []permissions.Module{"auth_login"})

	// No entitlement row exists, yet always-on modules allow.
	res, err := c.Check(context.Background(), 1, "auth_login")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Status != StatusEnabled {
		t.Errorf("Check = %+v, want enabled", res)
	}
	if store.lookups != 0 {
		t.Errorf("always-on check hit the store %d times, want 0", store.lookups)
	}
}

func TestCheckStoreErrorFailsClosed(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	c := newTestChecker(t, store, nil)

	_, err := c.Check(context.Background(), 1, "crm")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Check err = %v, want ErrUnavailable", err)
	}
}

func TestCheckUsesCache(t *testing.T) {
	store := &fakeStore{rows: map[string]*Entitlement{
		entKey(1, "crm"): {OrgID: 1, Module: "crm", Status: StatusEnabled},
	}}
	c := newTestChecker(t, store, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.Check(context.Background(), 1, "crm"); err != nil {
			t.Fatal(err)
		}
	}
	if store.lookups != 1 {
		t.Errorf("store hit %d times, want 1 (cached)", store.lookups)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	store := &fakeStore{rows: map[string]*Entitlement{
		entKey(1, "crm"): {OrgID: 1, Module: "crm", Status: StatusEnabled},
	}}
	c := newTestChecker(t, store, nil)

	if _, err := c.Check(context.Background(), 1, "crm"); err != nil {
		t.Fatal(err)
	}

	// Admin disables the module and publishes the invalidation event.
	store.rows[entKey(1, "crm")].Status = StatusDisabled
	c.Invalidate(1, "crm")

	if _, err := c.Check(context.Background(), 1, "crm"); !errors.Is(err, ErrModuleMissing) {
		t.Fatalf("after invalidation: err = %v, want ErrModuleMissing", err)
	}
}

func TestInvalidateDuringInFlightLoad(t *testing.T) {
	store := &fakeStore{rows: map[string]*Entitlement{
		entKey(1, "manufacturing"): {OrgID: 1, Module: "manufacturing", Status: StatusEnabled},
	}}
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.onGet = func() {
		once.Do(func() { close(started) })
		<-release
	}
	c := newTestChecker(t, store, nil)

	// First check reads the enabled row, then stalls before returning.
	first := make(chan error, 1)
	go func() {
		_, err := c.Check(context.Background(), 1, "manufacturing")
		first <- err
	}()
	<-started

	// Admin disables the module and publishes the invalidation while that
	// load is still in flight, then the load completes with the old row.
	store.rows[entKey(1, "manufacturing")] = &Entitlement{OrgID: 1, Module: "manufacturing", Status: StatusDisabled}
	c.Invalidate(1, "manufacturing")
	close(release)
	<-first

	// The stale result must not have been re-cached: the next check
	// reloads and sees the disabled row.
	if _, err := c.Check(context.Background(), 1, "manufacturing"); !errors.Is(err, ErrModuleMissing) {
		t.Fatalf("check after invalidation: err = %v, want ErrModuleMissing", err)
	}
}

func TestSetAlwaysOnReplacesList(t *testing.T) {
	store := &fakeStore{}
	c := newTestChecker(t, store, []permissions.Module{"auth_login"})

	c.SetAlwaysOn([]permissions.Module{"settings"})
	if c.IsAlwaysOn("auth_login") {
		t.Error("auth_login should have been dropped from the allowlist")
	}
	if !c.IsAlwaysOn("settings") {
		t.Error("settings should be always-on after reload")
	}
}

func TestWarmupPrimesCache(t *testing.T) {
	store := &fakeStore{rows: map[string]*Entitlement{
		entKey(1, "crm"):     {OrgID: 1, Module: "crm", Status: StatusEnabled},
		entKey(1, "voucher"): {OrgID: 1, Module: "voucher", Status: StatusDisabled},
	}}
	c := newTestChecker(t, store, nil)

	if err := c.Warmup(context.Background(), []tenant.OrgID{1}); err != nil {
		t.Fatalf("Warmup failed: %v", err)
	}

	store.lookups = 0
	if _, err := c.Check(context.Background(), 1, "crm"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Check(context.Background(), 1, "voucher"); !errors.Is(err, ErrModuleMissing) {
		t.Fatalf("voucher: err = %v, want ErrModuleMissing", err)
	}
	if store.lookups != 0 {
		t.Errorf("warmed checks hit the store %d times, want 0", store.lookups)
	}
}
