package models

import (
	"github.com/google/uuid"
)

type RoleScope string

const (
	RoleScopeTenant RoleScope = "tenant"
	RoleScopeGlobal RoleScope = "global"
)

type Role struct {
	ID       uuid.UUID  `json:"id" db:"id"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"`
	Name     string     `json:"name" db:"name"`
}

// Scope derives the explicit role scope from the nullable tenant column:
// a role with no tenant is a deliberate global role.
func (r *Role) Scope() RoleScope {
	if r.TenantID == nil {
		return RoleScopeGlobal
	}
	return RoleScopeTenant
}

// UsableBy reports whether a user of tenantID may hold this role.
func (r *Role) UsableBy(tenantID uuid.UUID) bool {
	return r.TenantID == nil || *r.TenantID == tenantID
}

type Permission struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
}

type UserRole struct {
	UserID uuid.UUID `json:"user_id" db:"user_id"`
	RoleID uuid.UUID `json:"role_id" db:"role_id"`
}

type RolePermission struct {
	RoleID       uuid.UUID `json:"role_id" db:"role_id"`
	PermissionID uuid.UUID `json:"permission_id" db:"permission_id"`
}
