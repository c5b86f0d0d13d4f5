package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/admin"
	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/quota"
)

type QuotaHandler struct {
	svc *admin.Service
}

func NewQuotaHandler(svc *admin.Service) *QuotaHandler {
	return &QuotaHandler{svc: svc}
}

func (h *QuotaHandler) Usage(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Usage(r.Context(), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type checkRequest struct {
	Kind  quota.Kind `json:"kind"`
	Delta int        `json:"delta"`
}

// Check reports whether a reservation would fit without making it.
func (h *QuotaHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.CheckQuota(r.Context(), actor(r), req.Kind, req.Delta)
	switch apperr.KindOf(err) {
	case "":
		writeJSON(w, http.StatusOK, map[string]interface{}{"allowed": true, "reservation": res})
	case apperr.KindQuotaExceeded:
		writeJSON(w, http.StatusOK, map[string]interface{}{"allowed": false, "reason": err.Error()})
	default:
		writeError(w, err)
	}
}

func (h *QuotaHandler) ReserveStorage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GB int `json:"gb"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.ReserveStorage(r.Context(), actor(r), req.GB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type subscribeRequest struct {
	PlanID uuid.UUID `json:"plan_id"`
	Start  time.Time `json:"current_period_start,omitempty"`
	End    time.Time `json:"current_period_end,omitempty"`
}

func (h *QuotaHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PlanID == uuid.Nil {
		badRequest(w, "plan_id required")
		return
	}
	sub, err := h.svc.ChangePlan(r.Context(), actor(r), req.PlanID, req.Start, req.End)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}
