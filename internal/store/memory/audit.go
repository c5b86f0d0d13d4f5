package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

func (t *tx) InsertAudit(ctx context.Context, a models.AuditLog) (*models.AuditLog, error) {
	if _, err := t.GetTenant(ctx, a.TenantID); err != nil {
		return nil, err
	}
	if _, err := t.GetUser(ctx, a.UserID); err != nil {
		return nil, err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = t.s.now()
	row := &auditRow{AuditLog: a, Seq: t.s.auditSeq.Add(1)}
	if err := t.insert(tableAuditLogs, row); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *tx) ListAudit(ctx context.Context, tenantID uuid.UUID, f store.AuditFilter) ([]models.AuditLog, error) {
	rows, err := list[auditRow](t, tableAuditLogs, indexTenant, tenantID)
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq > rows[j].Seq })

	limit := f.Limit
	if limit <= 0 {
		limit = store.DefaultAuditLimit
	}

	var out []models.AuditLog
	skipped := 0
	for _, r := range rows {
		if f.Action != "" && r.Action != f.Action {
			continue
		}
		if f.Since != nil && r.CreatedAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && r.CreatedAt.After(*f.Until) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, r.AuditLog)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
