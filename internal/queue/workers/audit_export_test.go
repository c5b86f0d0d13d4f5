package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/queue"
	"github.com/nikhilbhutani/tenantguard/internal/webhook"
)

type fakeSender struct {
	err   error
	sent  [][]byte
	event string
}

func (f *fakeSender) Send(_ context.Context, event, _ string, payload []byte) error {
	f.event = event
	f.sent = append(f.sent, payload)
	return f.err
}

func task(t *testing.T) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(queue.AuditExportPayload{
		TenantID: uuid.NewString(),
		Records:  []models.AuditLog{{ID: uuid.New(), Action: "user.invited"}},
	})
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeAuditExport, data)
}

func TestAuditExportForwardsPayload(t *testing.T) {
	s := &fakeSender{}
	w := &AuditExportWorker{sender: s}
	tk := task(t)

	require.NoError(t, w.ProcessTask(context.Background(), tk))
	require.Len(t, s.sent, 1)
	assert.Equal(t, tk.Payload(), s.sent[0])
	assert.Equal(t, exportEvent, s.event)
}

func TestAuditExportRetryPolicy(t *testing.T) {
	w := &AuditExportWorker{sender: &fakeSender{err: &webhook.StatusError{Code: 400}}}
	err := w.ProcessTask(context.Background(), task(t))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	w = &AuditExportWorker{sender: &fakeSender{err: &webhook.StatusError{Code: 503}}}
	err = w.ProcessTask(context.Background(), task(t))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	err = w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeAuditExport, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
