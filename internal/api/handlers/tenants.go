package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/admin"
	"github.com/nikhilbhutani/tenantguard/internal/models"
)

const tokenTTL = 12 * time.Hour

type TokenIssuer interface {
	IssueToken(u *models.User, ttl time.Duration) (string, error)
}

type TenantHandler struct {
	svc    *admin.Service
	tokens TokenIssuer
}

func NewTenantHandler(svc *admin.Service, tokens TokenIssuer) *TenantHandler {
	return &TenantHandler{svc: svc, tokens: tokens}
}

func (h *TenantHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req admin.SignupRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.SignupTenant(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := h.tokens.IssueToken(res.Admin, tokenTTL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"tenant":       res.Tenant,
		"admin":        res.Admin,
		"role":         res.Role,
		"subscription": res.Subscription,
		"token":        token,
	})
}

type loginRequest struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
}

func (h *TenantHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.svc.Login(r.Context(), req.TenantID, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := h.tokens.IssueToken(u, tokenTTL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "expires_in": int(tokenTTL.Seconds())})
}

func (h *TenantHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ListPlans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans, "count": len(plans)})
}
