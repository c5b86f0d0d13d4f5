package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/admin"
	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/tenant"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	apperr.WriteHTTP(w, err)
}

func badRequest(w http.ResponseWriter, msg string) {
	apperr.WriteHTTP(w, apperr.Invalid("request", "%s", msg))
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// actor reads the authenticated principal set by the JWT middleware.
func actor(r *http.Request) admin.Actor {
	p := tenant.PrincipalFromContext(r.Context())
	if p == nil || p.User == nil {
		return admin.Actor{}
	}
	return admin.Actor{TenantID: p.User.TenantID, UserID: p.User.ID}
}
