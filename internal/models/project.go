package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID              uuid.UUID `json:"id" db:"id"`
	TenantID        uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name            string    `json:"name" db:"name"`
	CreatedByUserID uuid.UUID `json:"created_by_user_id" db:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type Task struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	TenantID       uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	ProjectID      uuid.UUID  `json:"project_id" db:"project_id"`
	Title          string     `json:"title" db:"title"`
	AssigneeUserID *uuid.UUID `json:"assignee_user_id,omitempty" db:"assignee_user_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
