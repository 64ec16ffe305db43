package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/finsuite/accessgate/pkg/tenant"
)

// Trusted identity headers, set by the authenticating gateway upstream.
// They must be stripped from external traffic at the edge.
const (
	PrincipalHeader = "X-Principal-ID"
	HomeOrgHeader   = "X-Principal-Org"
	RolesHeader     = "X-Principal-Roles"
	BypassHeader    = "X-Principal-Bypass"
)

// PrincipalMiddleware translates the trusted identity headers into a
// tenant.Principal on the request context.
type PrincipalMiddleware struct {
	optional bool // If true, allow requests without identity headers
}

// NewPrincipalMiddleware creates the identity adapter. With optional set,
// requests without identity headers pass through unauthenticated and the
// gate produces the denial; otherwise they are rejected here.
func NewPrincipalMiddleware(optional bool) *PrincipalMiddleware {
	return &PrincipalMiddleware{optional: optional}
}

// Handler wraps an HTTP handler with principal extraction.
func (m *PrincipalMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := r.Header.Get(PrincipalHeader)
		if rawID == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorizedResponse(w, "missing identity headers")
			return
		}

		p, err := principalFromHeaders(r)
		if err != nil {
			m.unauthorizedResponse(w, err.Error())
			return
		}

		ctx := tenant.WithPrincipal(r.Context(), p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromHeaders(r *http.Request) (*tenant.Principal, error) {
	id, err := strconv.ParseInt(r.Header.Get(PrincipalHeader), 10, 64)
	if err != nil {
		return nil, errInvalidHeader{PrincipalHeader}
	}
	org, err := strconv.ParseInt(r.Header.Get(HomeOrgHeader), 10, 64)
	if err != nil {
		return nil, errInvalidHeader{HomeOrgHeader}
	}

	p := &tenant.Principal{
		ID:        tenant.PrincipalID(id),
		HomeOrgID: tenant.OrgID(org),
	}

	if raw := r.Header.Get(RolesHeader); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			roleID, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, errInvalidHeader{RolesHeader}
			}
			p.RoleIDs = append(p.RoleIDs, tenant.RoleID(roleID))
		}
	}

	if r.Header.Get(BypassHeader) == string(tenant.BypassSuperAdmin) {
		p.Bypass = tenant.BypassSuperAdmin
	}
	return p, nil
}

type errInvalidHeader struct {
	header string
}

func (e errInvalidHeader) Error() string {
	return "invalid " + e.header + " header"
}

func (m *PrincipalMiddleware) unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
