package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/admin"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
)

type AuthzHandler struct {
	svc *admin.Service
}

func NewAuthzHandler(svc *admin.Service) *AuthzHandler {
	return &AuthzHandler{svc: svc}
}

func (h *AuthzHandler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.svc.Permissions(r.Context(), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"permissions": perms.Names()})
}

type authorizeRequest struct {
	UserID     uuid.UUID `json:"user_id,omitempty"`
	Permission string    `json:"permission"`
}

// Authorize answers a permission question. A denial is a normal 200 answer
// here, not an error.
func (h *AuthzHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Permission == "" {
		badRequest(w, "permission required")
		return
	}

	d, err := h.svc.Authorize(r.Context(), actor(r), req.UserID, rbac.Permission(req.Permission))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"allowed":    d.Allowed,
		"permission": d.Permission,
		"anomalies":  len(d.Anomalies),
	})
}
