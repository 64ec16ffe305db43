package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/finsuite/accessgate/pkg/entitlement"
	"github.com/finsuite/accessgate/pkg/tenant"
)

type handlerFixture struct {
	*fixture
	router *mux.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newFixture(t)

	router := mux.NewRouter()
	NewHandlers(f.composer, f.ent, f.rb, nil).RegisterRoutes(router)
	return &handlerFixture{fixture: f, router: router}
}

func postJSON(t *testing.T, router *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decide(t *testing.T, f *handlerFixture, req DecisionRequest) DecisionResponse {
	t.Helper()
	rec := postJSON(t, f.router, "/v1/decisions", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp DecisionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	return resp
}

func TestDecideAllow(t *testing.T) {
	f := newHandlerFixture(t)

	resp := decide(t, f, DecisionRequest{
		Principal: clerk(), Module: "voucher", Action: "create",
	})
	if !resp.Allowed {
		t.Fatalf("denied: %s (%s)", resp.Kind, resp.Message)
	}
	if resp.OrgID != 1 {
		t.Errorf("org = %d, want 1", resp.OrgID)
	}
}

func TestDecideDeniedCarriesKind(t *testing.T) {
	f := newHandlerFixture(t)

	resp := decide(t, f, DecisionRequest{
		Principal: clerk(), Module: "voucher", Action: "delete",
	})
	if resp.Allowed {
		t.Fatal("should be denied")
	}
	if resp.Kind != KindPermissionDenied {
		t.Errorf("kind = %q, want %q", resp.Kind, KindPermissionDenied)
	}
}

func TestDecideResourceMismatch(t *testing.T) {
	f := newHandlerFixture(t)
	resourceOrg := tenant.OrgID(2)

	resp := decide(t, f, DecisionRequest{
		Principal: clerk(), Module: "voucher", Action: "view",
		ResourceOrgID: &resourceOrg,
	})
	if resp.Allowed || resp.Kind != KindResourceNotFound {
		t.Errorf("kind = %q, want %q", resp.Kind, KindResourceNotFound)
	}
}

func TestDecideUnavailableIs503(t *testing.T) {
	f := newHandlerFixture(t)
	f.entStore.errs = []error{errDown, errDown}

	rec := postJSON(t, f.router, "/v1/decisions", DecisionRequest{
		Principal: clerk(), Module: "voucher", Action: "view",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestDecideRejectsMissingFields(t *testing.T) {
	f := newHandlerFixture(t)
	rec := postJSON(t, f.router, "/v1/decisions", DecisionRequest{Principal: clerk()})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestInvalidateEntitlementEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	// Prime the cache, flip the store row, then invalidate over HTTP.
	resp := decide(t, f, DecisionRequest{Principal: clerk(), Module: "voucher", Action: "view"})
	if !resp.Allowed {
		t.Fatalf("priming decision denied: %s", resp.Kind)
	}
	f.entStore.rows[entitlement.Key(1, "voucher")].Status = entitlement.StatusDisabled

	rec := postJSON(t, f.router, "/v1/invalidations/entitlements", map[string]interface{}{
		"org_id": 1, "module": "voucher",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	resp = decide(t, f, DecisionRequest{Principal: clerk(), Module: "voucher", Action: "view"})
	if resp.Allowed {
		t.Error("decision should see the disabled row after invalidation")
	}
	if resp.Kind != KindEntitlementMissing {
		t.Errorf("kind = %q, want %q", resp.Kind, KindEntitlementMissing)
	}
}

func TestInvalidateRolesEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	resp := decide(t, f, DecisionRequest{Principal: clerk(), Module: "voucher", Action: "view"})
	if !resp.Allowed {
		t.Fatalf("priming decision denied: %s", resp.Kind)
	}
	f.rbStore.assigned[10] = nil

	rec := postJSON(t, f.router, "/v1/invalidations/roles", map[string]interface{}{"org_id": 1})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	resp = decide(t, f, DecisionRequest{Principal: clerk(), Module: "voucher", Action: "view"})
	if resp.Allowed {
		t.Error("decision should see the revoked roles after invalidation")
	}
}

func TestDecideHonorsContext(t *testing.T) {
	f := newHandlerFixture(t)
	f.entStore.delay = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	raw, _ := json.Marshal(DecisionRequest{Principal: clerk(), Module: "voucher", Action: "view"})
	req := httptest.NewRequest("POST", "/v1/decisions", bytes.NewReader(raw)).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 for a cancelled request", rec.Code)
	}
}
