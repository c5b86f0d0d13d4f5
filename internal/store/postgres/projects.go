package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/models"
)

const (
	projectCols = "id, tenant_id, name, created_by_user_id, created_at"
	taskCols    = "id, tenant_id, project_id, title, assignee_user_id, created_at"
)

func (t *tx) CreateProject(ctx context.Context, p models.Project) (*models.Project, error) {
	return one[models.Project](ctx, t.q, "store.project.create",
		`INSERT INTO projects (tenant_id, name, created_by_user_id) VALUES ($1, $2, $3) RETURNING `+projectCols,
		p.TenantID, p.Name, p.CreatedByUserID)
}

func (t *tx) ListProjects(ctx context.Context, tenantID uuid.UUID) ([]models.Project, error) {
	return many[models.Project](ctx, t.q, "store.project.list",
		`SELECT `+projectCols+` FROM projects WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
}

func (t *tx) CreateTask(ctx context.Context, task models.Task) (*models.Task, error) {
	return one[models.Task](ctx, t.q, "store.task.create",
		`INSERT INTO tasks (tenant_id, project_id, title, assignee_user_id) VALUES ($1, $2, $3, $4) RETURNING `+taskCols,
		task.TenantID, task.ProjectID, task.Title, task.AssigneeUserID)
}

func (t *tx) ListTasks(ctx context.Context, tenantID uuid.UUID) ([]models.Task, error) {
	return many[models.Task](ctx, t.q, "store.task.list",
		`SELECT `+taskCols+` FROM tasks WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
}
