package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantguard/internal/models"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func (r *recordingEnqueuer) Close() error { return nil }

func TestExportAudit(t *testing.T) {
	rec := &recordingEnqueuer{}
	c := &Client{client: rec}
	tenantID := uuid.New()

	require.NoError(t, c.ExportAudit(context.Background(), nil))
	assert.Empty(t, rec.tasks)

	logs := []models.AuditLog{{ID: uuid.New(), TenantID: tenantID, UserID: uuid.New(), Action: "user.invited"}}
	require.NoError(t, c.ExportAudit(context.Background(), logs))
	require.Len(t, rec.tasks, 1)
	assert.Equal(t, TypeAuditExport, rec.tasks[0].Type())

	var p AuditExportPayload
	require.NoError(t, json.Unmarshal(rec.tasks[0].Payload(), &p))
	assert.Equal(t, tenantID.String(), p.TenantID)
	require.Len(t, p.Records, 1)
	assert.Equal(t, "user.invited", p.Records[0].Action)
}
