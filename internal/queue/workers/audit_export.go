package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/tenantguard/internal/queue"
	"github.com/nikhilbhutani/tenantguard/internal/webhook"
)

const exportEvent = "audit.export"

type sender interface {
	Send(ctx context.Context, event, id string, payload []byte) error
}

type AuditExportWorker struct {
	sender sender
}

func NewAuditExportWorker(s *webhook.Sender) *AuditExportWorker {
	return &AuditExportWorker{sender: s}
}

func (w *AuditExportWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.AuditExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if len(payload.Records) == 0 {
		return nil
	}

	id, _ := asynq.GetTaskID(ctx)
	slog.Info("exporting audit records", "tenant_id", payload.TenantID, "count", len(payload.Records), "task_id", id)

	err := w.sender.Send(ctx, exportEvent, id, t.Payload())
	var se *webhook.StatusError
	if errors.As(err, &se) && se.Permanent() {
		slog.Warn("audit export rejected", "tenant_id", payload.TenantID, "status", se.Code)
		return fmt.Errorf("export audit: %w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("export audit: %w", err)
	}
	return nil
}
