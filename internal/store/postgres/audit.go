package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

const auditCols = "id, tenant_id, user_id, action, COALESCE(details, '{}'::jsonb) AS details, created_at"

func (t *tx) InsertAudit(ctx context.Context, a models.AuditLog) (*models.AuditLog, error) {
	var details []byte
	if len(a.Details) > 0 {
		details = a.Details
	}
	return one[models.AuditLog](ctx, t.q, "store.audit.insert",
		`INSERT INTO audit_logs (tenant_id, user_id, action, details) VALUES ($1, $2, $3, $4)
		 RETURNING `+auditCols,
		a.TenantID, a.UserID, a.Action, details)
}

func (t *tx) ListAudit(ctx context.Context, tenantID uuid.UUID, f store.AuditFilter) ([]models.AuditLog, error) {
	if f.Limit <= 0 {
		f.Limit = store.DefaultAuditLimit
	}

	query := `SELECT ` + auditCols + ` FROM audit_logs WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if f.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, f.Action)
		argIdx++
	}
	if f.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *f.Since)
		argIdx++
	}
	if f.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *f.Until)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, f.Limit, f.Offset)

	return many[models.AuditLog](ctx, t.q, "store.audit.list", query, args...)
}
