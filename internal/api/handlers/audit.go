package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhutani/tenantguard/internal/admin"
	"github.com/nikhilbhutani/tenantguard/internal/audit"
)

type AuditHandler struct {
	svc *admin.Service
}

func NewAuditHandler(svc *admin.Service) *AuditHandler {
	return &AuditHandler{svc: svc}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{
		Action: audit.Action(r.URL.Query().Get("action")),
	}

	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	for param, dst := range map[string]**time.Time{"start_date": &q.StartDate, "end_date": &q.EndDate} {
		s := r.URL.Query().Get(param)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			badRequest(w, param+" must be RFC3339")
			return
		}
		*dst = &t
	}

	logs, err := h.svc.ListAudit(r.Context(), actor(r), q)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": logs, "count": len(logs)})
}
