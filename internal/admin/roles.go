package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/audit"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

func (s *Service) CreateRole(ctx context.Context, actor Actor, name string) (*models.Role, error) {
	var role *models.Role
	err := s.run(ctx, "create role", actor, rbac.PermManageRoles, func(o *op) error {
		var err error
		if role, err = s.graph.CreateRole(ctx, o.tx, &actor.TenantID, name); err != nil {
			return err
		}
		return o.record(audit.RoleCreated, map[string]any{"role_id": role.ID, "name": role.Name})
	})
	return role, err
}

// visibleRole loads a role the actor's tenant may use. Roles of other tenants
// are reported as missing.
func (s *Service) visibleRole(ctx context.Context, tx store.Tx, tenantID, roleID uuid.UUID) (*models.Role, error) {
	role, err := tx.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !role.UsableBy(tenantID) {
		return nil, apperr.NotFound("admin.role", "role %s", roleID)
	}
	return role, nil
}

// ownedRole is visibleRole restricted to the tenant's own roles; global roles
// are only edited by operators.
func (s *Service) ownedRole(ctx context.Context, tx store.Tx, tenantID, roleID uuid.UUID) (*models.Role, error) {
	role, err := s.visibleRole(ctx, tx, tenantID, roleID)
	if err != nil {
		return nil, err
	}
	if role.Scope() == models.RoleScopeGlobal {
		return nil, apperr.Forbidden("admin.role", "global role %s is managed by operators", roleID)
	}
	return role, nil
}

func (s *Service) AssignRole(ctx context.Context, actor Actor, userID, roleID uuid.UUID) error {
	return s.run(ctx, "assign role", actor, rbac.PermManageRoles, func(o *op) error {
		u, err := s.users.Get(ctx, o.tx, actor.TenantID, userID)
		if err != nil {
			return err
		}
		if _, err := s.visibleRole(ctx, o.tx, actor.TenantID, roleID); err != nil {
			return err
		}
		created, err := s.graph.AssignRole(ctx, o.tx, &o.inv, u, roleID)
		if err != nil || !created {
			return err
		}
		return o.record(audit.RoleGranted, map[string]any{"user_id": u.ID, "role_id": roleID})
	})
}

func (s *Service) RevokeRole(ctx context.Context, actor Actor, userID, roleID uuid.UUID) error {
	return s.run(ctx, "revoke role", actor, rbac.PermManageRoles, func(o *op) error {
		u, err := s.users.Get(ctx, o.tx, actor.TenantID, userID)
		if err != nil {
			return err
		}
		removed, err := s.graph.RevokeRole(ctx, o.tx, &o.inv, u, roleID)
		if err != nil || !removed {
			return err
		}
		return o.record(audit.RoleRevoked, map[string]any{"user_id": u.ID, "role_id": roleID})
	})
}

// GrantPermission adds a catalog permission to one of the tenant's roles. An
// actor can only hand out permissions it holds itself.
func (s *Service) GrantPermission(ctx context.Context, actor Actor, roleID uuid.UUID, permission string) error {
	return s.run(ctx, "grant permission", actor, rbac.PermManageRoles, func(o *op) error {
		role, err := s.ownedRole(ctx, o.tx, actor.TenantID, roleID)
		if err != nil {
			return err
		}
		if _, err := o.tx.GetPermissionByName(ctx, permission); err != nil {
			return err
		}
		if err := s.engine.Require(ctx, o.tx, actor.TenantID, actor.UserID, rbac.Permission(permission)); err != nil {
			return err
		}
		granted, err := s.graph.GrantPermission(ctx, o.tx, &o.inv, role, permission)
		if err != nil || !granted {
			return err
		}
		return o.record(audit.PermissionGranted, map[string]any{"role_id": role.ID, "permission": permission})
	})
}

func (s *Service) RevokePermission(ctx context.Context, actor Actor, roleID uuid.UUID, permission string) error {
	return s.run(ctx, "revoke permission", actor, rbac.PermManageRoles, func(o *op) error {
		role, err := s.ownedRole(ctx, o.tx, actor.TenantID, roleID)
		if err != nil {
			return err
		}
		revoked, err := s.graph.RevokePermission(ctx, o.tx, &o.inv, role, permission)
		if err != nil || !revoked {
			return err
		}
		return o.record(audit.PermissionRevoked, map[string]any{"role_id": role.ID, "permission": permission})
	})
}

func (s *Service) ListRoles(ctx context.Context, actor Actor) ([]models.Role, error) {
	var out []models.Role
	err := s.view(ctx, "list roles", actor, rbac.PermManageRoles, func(tx store.Tx) error {
		var err error
		out, err = tx.ListRoles(ctx, actor.TenantID)
		return err
	})
	return out, err
}

func (s *Service) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var out []models.Permission
	err := s.view(ctx, "list permissions", Actor{}, "", func(tx store.Tx) error {
		var err error
		out, err = tx.ListPermissions(ctx)
		return err
	})
	return out, err
}
