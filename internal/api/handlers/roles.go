package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/tenantguard/internal/admin"
)

type RoleHandler struct {
	svc *admin.Service
}

func NewRoleHandler(svc *admin.Service) *RoleHandler {
	return &RoleHandler{svc: svc}
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	role, err := h.svc.CreateRole(r.Context(), actor(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.ListRoles(r.Context(), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"roles": roles, "count": len(roles)})
}

func (h *RoleHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.GrantPermission(r.Context(), actor(r), roleID, chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoleHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.RevokePermission(r.Context(), actor(r), roleID, chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoleHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.svc.ListPermissions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"permissions": perms, "count": len(perms)})
}
