package rbac

import (
	"net/http"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/tenant"
)

// RequirePermission rejects requests whose principal lacks perm. It reads
// through the permission cache; handlers that mutate state re-check inside
// their own transaction.
func (e *Engine) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := tenant.PrincipalFromContext(req.Context())
			if p == nil || p.User == nil {
				apperr.WriteHTTP(w, apperr.Forbidden("rbac.middleware", "no principal in context"))
				return
			}

			d, err := e.Authorize(req.Context(), p.User.TenantID, p.User.ID, perm)
			if err != nil {
				apperr.WriteHTTP(w, err)
				return
			}
			if err := d.Err(); err != nil {
				apperr.WriteHTTP(w, err)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}
