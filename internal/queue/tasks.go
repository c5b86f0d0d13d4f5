package queue

import "github.com/nikhilbhutani/tenantguard/internal/models"

const (
	TypeAuditExport = "audit:export"
)

// AuditExportPayload carries the audit rows committed by one operation.
type AuditExportPayload struct {
	TenantID string            `json:"tenant_id"`
	Records  []models.AuditLog `json:"records"`
}
