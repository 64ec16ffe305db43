package gate

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/finsuite/accessgate/pkg/entitlement"
	"github.com/finsuite/accessgate/pkg/observability"
	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/rbac"
	"github.com/finsuite/accessgate/pkg/tenant"
)

// Handlers exposes the decision-point and invalidation endpoints for
// services that consult the engine over HTTP instead of embedding it.
type Handlers struct {
	composer    *Composer
	entitlement *entitlement.Checker
	rbac        *rbac.Checker
	logger      *observability.Logger
}

// NewHandlers creates the HTTP surface over the composer and its checkers.
func NewHandlers(c *Composer, ent *entitlement.Checker, rb *rbac.Checker, logger *observability.Logger) *Handlers {
	return &Handlers{
		composer:    c,
		entitlement: ent,
		rbac:        rb,
		logger:      logger,
	}
}

// RegisterRoutes registers the decision and invalidation routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/decisions", h.Decide).Methods("POST")
	router.HandleFunc("/v1/invalidations/entitlements", h.InvalidateEntitlement).Methods("POST")
	router.HandleFunc("/v1/invalidations/roles", h.InvalidateRoles).Methods("POST")
}

// DecisionRequest is the body of POST /v1/decisions.
type DecisionRequest struct {
	Principal     *tenant.Principal  `json:"principal"`
	Module        permissions.Module `json:"module"`
	Action        permissions.Action `json:"action"`
	TargetOrgID   *tenant.OrgID      `json:"target_org_id,omitempty"`
	ResourceOrgID *tenant.OrgID      `json:"resource_org_id,omitempty"`
}

// DecisionResponse is the body of POST /v1/decisions. Denials carry the
// failure kind and the caller-safe message.
type DecisionResponse struct {
	Allowed bool         `json:"allowed"`
	OrgID   tenant.OrgID `json:"org_id,omitempty"`
	Trial   bool         `json:"trial,omitempty"`
	Kind    Kind         `json:"kind,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Decide evaluates one access decision for the posted principal. The
// decision itself always answers 200; the denial semantics live in the
// body, because the caller here is a policy-enforcement point, not the
// denied principal.
func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", "invalid request body")
		return
	}
	if req.Module == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "invalid", "module and action are required")
		return
	}

	var opts []CallOption
	if req.TargetOrgID != nil {
		opts = append(opts, WithTargetOrg(*req.TargetOrgID))
	}
	if req.ResourceOrgID != nil {
		opts = append(opts, WithResourceOrg(*req.ResourceOrgID))
	}

	grant, err := h.composer.Gate(r.Context(), req.Principal, req.Module, req.Action, opts...)
	if err != nil {
		var ae *AccessError
		if !errors.As(err, &ae) {
			writeError(w, http.StatusInternalServerError, "internal", "decision failed")
			return
		}
		// A transient failure is the one case the enforcement point must
		// not treat as a policy denial.
		if ae.Kind == KindUnavailable {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, string(ae.Kind), ae.PublicMessage())
			return
		}
		writeJSON(w, http.StatusOK, DecisionResponse{
			Allowed: false,
			Kind:    ae.Kind,
			Message: ae.PublicMessage(),
		})
		return
	}

	writeJSON(w, http.StatusOK, DecisionResponse{
		Allowed: true,
		OrgID:   grant.OrgID,
		Trial:   grant.Trial,
	})
}

// InvalidateEntitlement drops the cached entitlement for one (org, module)
// pair. Administrative layers call this after changing a license.
func (h *Handlers) InvalidateEntitlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrgID  tenant.OrgID       `json:"org_id"`
		Module permissions.Module `json:"module"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", "invalid request body")
		return
	}
	if req.OrgID == 0 || req.Module == "" {
		writeError(w, http.StatusBadRequest, "invalid", "org_id and module are required")
		return
	}

	h.entitlement.Invalidate(req.OrgID, req.Module)
	if h.logger != nil {
		h.logger.WithFields(map[string]interface{}{
			"org_id": req.OrgID,
			"module": req.Module,
		}).Info("entitlement cache invalidated")
	}
	w.WriteHeader(http.StatusNoContent)
}

// InvalidateRoles retires every cached permission closure for an
// organization. Administrative layers call this after changing role
// definitions or assignments.
func (h *Handlers) InvalidateRoles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrgID tenant.OrgID `json:"org_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", "invalid request body")
		return
	}
	if req.OrgID == 0 {
		writeError(w, http.StatusBadRequest, "invalid", "org_id is required")
		return
	}

	h.rbac.Invalidate(req.OrgID)
	if h.logger != nil {
		h.logger.WithField("org_id", req.OrgID).Info("role cache invalidated")
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
