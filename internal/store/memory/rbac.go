package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
)

func (t *tx) CreateRole(ctx context.Context, r models.Role) (*models.Role, error) {
	if r.TenantID != nil {
		if _, err := t.GetTenant(ctx, *r.TenantID); err != nil {
			return nil, err
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	row := r
	if err := t.insert(tableRoles, &row); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *tx) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	r, err := first[models.Role](t, tableRoles, indexID, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("store.role.get", "role %s", id)
	}
	return r, nil
}

func (t *tx) ListRoles(ctx context.Context, tenantID uuid.UUID) ([]models.Role, error) {
	scoped, err := list[models.Role](t, tableRoles, indexTenant, tenantID)
	if err != nil {
		return nil, err
	}
	all, err := list[models.Role](t, tableRoles, indexID)
	if err != nil {
		return nil, err
	}
	var global []models.Role
	for _, r := range all {
		if r.TenantID == nil {
			global = append(global, r)
		}
	}
	byName := func(rs []models.Role) {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Name < rs[j].Name })
	}
	byName(scoped)
	byName(global)
	return append(scoped, global...), nil
}

func (t *tx) AssignRole(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	if _, err := t.GetUser(ctx, userID); err != nil {
		return false, err
	}
	if _, err := t.GetRole(ctx, roleID); err != nil {
		return false, err
	}
	existing, err := t.txn.First(tableUserRoles, indexID, userID, roleID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if err := t.insert(tableUserRoles, &models.UserRole{UserID: userID, RoleID: roleID}); err != nil {
		return false, err
	}
	return true, nil
}

func (t *tx) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	existing, err := t.txn.First(tableUserRoles, indexID, userID, roleID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if err := t.delete(tableUserRoles, existing); err != nil {
		return false, err
	}
	return true, nil
}

func (t *tx) UserRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	edges, err := list[models.UserRole](t, tableUserRoles, indexUser, userID)
	if err != nil {
		return nil, err
	}
	roles := make([]models.Role, 0, len(edges))
	for _, e := range edges {
		r, err := t.GetRole(ctx, e.RoleID)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (t *tx) CreatePermission(ctx context.Context, p models.Permission) (*models.Permission, error) {
	existing, err := first[models.Permission](t, tablePermissions, indexName, p.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := p
	if err := t.insert(tablePermissions, &row); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *tx) GetPermissionByName(ctx context.Context, name string) (*models.Permission, error) {
	p, err := first[models.Permission](t, tablePermissions, indexName, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("store.permission.get", "permission %q", name)
	}
	return p, nil
}

func (t *tx) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return list[models.Permission](t, tablePermissions, indexName)
}

func (t *tx) GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error) {
	if _, err := t.GetRole(ctx, roleID); err != nil {
		return false, err
	}
	p, err := first[models.Permission](t, tablePermissions, indexID, permissionID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, apperr.NotFound("store.permission.grant", "permission %s", permissionID)
	}
	existing, err := t.txn.First(tableRolePermissions, indexID, roleID, permissionID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if err := t.insert(tableRolePermissions, &models.RolePermission{RoleID: roleID, PermissionID: permissionID}); err != nil {
		return false, err
	}
	return true, nil
}

func (t *tx) RevokePermission(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error) {
	existing, err := t.txn.First(tableRolePermissions, indexID, roleID, permissionID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if err := t.delete(tableRolePermissions, existing); err != nil {
		return false, err
	}
	return true, nil
}

func (t *tx) PermissionsForRoles(ctx context.Context, roleIDs []uuid.UUID) (map[uuid.UUID][]models.Permission, error) {
	out := make(map[uuid.UUID][]models.Permission, len(roleIDs))
	for _, roleID := range roleIDs {
		edges, err := list[models.RolePermission](t, tableRolePermissions, indexRole, roleID)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			p, err := first[models.Permission](t, tablePermissions, indexID, e.PermissionID)
			if err != nil {
				return nil, err
			}
			if p != nil {
				out[roleID] = append(out[roleID], *p)
			}
		}
	}
	return out, nil
}
