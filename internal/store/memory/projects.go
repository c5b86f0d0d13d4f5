package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
)

func (t *tx) CreateProject(ctx context.Context, p models.Project) (*models.Project, error) {
	if _, err := t.GetTenant(ctx, p.TenantID); err != nil {
		return nil, err
	}
	if _, err := t.GetUser(ctx, p.CreatedByUserID); err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = t.s.now()
	row := p
	if err := t.insert(tableProjects, &row); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *tx) ListProjects(ctx context.Context, tenantID uuid.UUID) ([]models.Project, error) {
	out, err := list[models.Project](t, tableProjects, indexTenant, tenantID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) CreateTask(ctx context.Context, task models.Task) (*models.Task, error) {
	if _, err := t.GetTenant(ctx, task.TenantID); err != nil {
		return nil, err
	}
	p, err := first[models.Project](t, tableProjects, indexID, task.ProjectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("store.task.create", "project %s", task.ProjectID)
	}
	if task.AssigneeUserID != nil {
		if _, err := t.GetUser(ctx, *task.AssigneeUserID); err != nil {
			return nil, err
		}
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	task.CreatedAt = t.s.now()
	row := task
	if err := t.insert(tableTasks, &row); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *tx) ListTasks(ctx context.Context, tenantID uuid.UUID) ([]models.Task, error) {
	out, err := list[models.Task](t, tableTasks, indexTenant, tenantID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
