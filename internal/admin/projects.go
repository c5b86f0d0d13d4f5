package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/audit"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

const maxTitleLen = 255

func (s *Service) CreateProject(ctx context.Context, actor Actor, name string) (*models.Project, error) {
	var p *models.Project
	err := s.run(ctx, "create project", actor, rbac.PermManageProjects, func(o *op) error {
		name = strings.TrimSpace(name)
		if name == "" || len(name) > maxTitleLen {
			return apperr.Invalid("admin.project", "project name must be 1-%d characters", maxTitleLen)
		}
		var err error
		p, err = o.tx.CreateProject(ctx, models.Project{TenantID: actor.TenantID, Name: name, CreatedByUserID: actor.UserID})
		if err != nil {
			return err
		}
		return o.record(audit.ProjectCreated, map[string]any{"project_id": p.ID, "name": p.Name})
	})
	return p, err
}

// CreateTask adds a task to one of the tenant's projects. The assignee, if
// any, must be a user of the same tenant.
func (s *Service) CreateTask(ctx context.Context, actor Actor, projectID uuid.UUID, title string, assignee *uuid.UUID) (*models.Task, error) {
	var task *models.Task
	err := s.run(ctx, "create task", actor, rbac.PermManageProjects, func(o *op) error {
		title = strings.TrimSpace(title)
		if title == "" || len(title) > maxTitleLen {
			return apperr.Invalid("admin.task", "task title must be 1-%d characters", maxTitleLen)
		}
		projects, err := o.tx.ListProjects(ctx, actor.TenantID)
		if err != nil {
			return err
		}
		found := false
		for _, p := range projects {
			if p.ID == projectID {
				found = true
				break
			}
		}
		if !found {
			return apperr.NotFound("admin.task", "project %s", projectID)
		}
		if assignee != nil {
			if _, err := s.users.Get(ctx, o.tx, actor.TenantID, *assignee); err != nil {
				return err
			}
		}
		task, err = o.tx.CreateTask(ctx, models.Task{
			TenantID:       actor.TenantID,
			ProjectID:      projectID,
			Title:          title,
			AssigneeUserID: assignee,
		})
		if err != nil {
			return err
		}
		return o.record(audit.TaskCreated, map[string]any{"task_id": task.ID, "project_id": projectID})
	})
	return task, err
}

func (s *Service) ListProjects(ctx context.Context, actor Actor) ([]models.Project, error) {
	var out []models.Project
	err := s.view(ctx, "list projects", actor, "", func(tx store.Tx) error {
		if err := actor.valid(); err != nil {
			return err
		}
		var err error
		out, err = tx.ListProjects(ctx, actor.TenantID)
		return err
	})
	return out, err
}

func (s *Service) ListTasks(ctx context.Context, actor Actor) ([]models.Task, error) {
	var out []models.Task
	err := s.view(ctx, "list tasks", actor, "", func(tx store.Tx) error {
		if err := actor.valid(); err != nil {
			return err
		}
		var err error
		out, err = tx.ListTasks(ctx, actor.TenantID)
		return err
	})
	return out, err
}
