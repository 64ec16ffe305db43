package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/tenant"
)

// OrgHeader is the request header naming an explicit target organization.
// Absent, the decision scopes to the principal's home organization.
const OrgHeader = "X-Org-ID"

type grantKey struct{}

// GrantFromContext retrieves the grant stored by RequireAccess, or nil when
// the request did not pass through the middleware.
func GrantFromContext(ctx context.Context) *Grant {
	g, ok := ctx.Value(grantKey{}).(*Grant)
	if !ok {
		return nil
	}
	return g
}

// Middleware adapts the composer to HTTP. The principal must already be on
// the request context (tenant.WithPrincipal), placed there by the identity
// layer.
type Middleware struct {
	composer *Composer
}

// NewMiddleware creates the HTTP adapter for the composer.
func NewMiddleware(c *Composer) *Middleware {
	return &Middleware{composer: c}
}

// RequireAccess gates the wrapped handler on (module, action). On allow the
// Grant is stored on the request context; on deny the typed failure is
// written and the handler never runs.
func (m *Middleware) RequireAccess(module permissions.Module, action permissions.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := tenant.PrincipalFromContext(r.Context())

			var opts []CallOption
			if raw := r.Header.Get(OrgHeader); raw != "" {
				org, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid", "invalid "+OrgHeader+" header")
					return
				}
				opts = append(opts, WithTargetOrg(tenant.OrgID(org)))
			}

			grant, err := m.composer.Gate(r.Context(), p, module, action, opts...)
			if err != nil {
				WriteAccessError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), grantKey{}, grant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteAccessError writes the transport form of a gate failure. Transient
// failures invite a retry via Retry-After.
func WriteAccessError(w http.ResponseWriter, err error) {
	status := ErrorStatus(err)
	kind := KindOf(err)
	message := "access denied"
	var ae *AccessError
	if errors.As(err, &ae) {
		message = ae.PublicMessage()
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, string(kind), message)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"kind":  kind,
	})
}
