package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/models"
)

const (
	roleCols       = "id, tenant_id, name"
	permissionCols = "id, name, COALESCE(description, '') AS description"
)

func (t *tx) CreateRole(ctx context.Context, r models.Role) (*models.Role, error) {
	return one[models.Role](ctx, t.q, "store.role.create",
		`INSERT INTO roles (tenant_id, name) VALUES ($1, $2) RETURNING `+roleCols, r.TenantID, r.Name)
}

func (t *tx) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	return one[models.Role](ctx, t.q, "store.role.get",
		`SELECT `+roleCols+` FROM roles WHERE id = $1`, id)
}

func (t *tx) ListRoles(ctx context.Context, tenantID uuid.UUID) ([]models.Role, error) {
	return many[models.Role](ctx, t.q, "store.role.list",
		`SELECT `+roleCols+` FROM roles
		 WHERE tenant_id = $1 OR tenant_id IS NULL
		 ORDER BY tenant_id IS NULL, name`, tenantID)
}

func (t *tx) AssignRole(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	n, err := t.exec(ctx, "store.role.assign",
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	return n == 1, err
}

func (t *tx) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	n, err := t.exec(ctx, "store.role.revoke",
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return n == 1, err
}

func (t *tx) UserRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	return many[models.Role](ctx, t.q, "store.role.for_user",
		`SELECT r.id, r.tenant_id, r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1 ORDER BY r.name`, userID)
}

func (t *tx) CreatePermission(ctx context.Context, p models.Permission) (*models.Permission, error) {
	if _, err := t.exec(ctx, "store.permission.create",
		`INSERT INTO permissions (name, description) VALUES ($1, NULLIF($2, '')) ON CONFLICT (name) DO NOTHING`,
		p.Name, p.Description); err != nil {
		return nil, err
	}
	return t.GetPermissionByName(ctx, p.Name)
}

func (t *tx) GetPermissionByName(ctx context.Context, name string) (*models.Permission, error) {
	return one[models.Permission](ctx, t.q, "store.permission.get",
		`SELECT `+permissionCols+` FROM permissions WHERE name = $1`, name)
}

func (t *tx) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return many[models.Permission](ctx, t.q, "store.permission.list",
		`SELECT `+permissionCols+` FROM permissions ORDER BY name`)
}

func (t *tx) GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error) {
	n, err := t.exec(ctx, "store.permission.grant",
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permissionID)
	return n == 1, err
}

func (t *tx) RevokePermission(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error) {
	n, err := t.exec(ctx, "store.permission.revoke",
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return n == 1, err
}

type rolePermissionRow struct {
	RoleID      uuid.UUID `db:"role_id"`
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
}

func (t *tx) PermissionsForRoles(ctx context.Context, roleIDs []uuid.UUID) (map[uuid.UUID][]models.Permission, error) {
	out := make(map[uuid.UUID][]models.Permission, len(roleIDs))
	if len(roleIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		ids[i] = id.String()
	}

	rows, err := many[rolePermissionRow](ctx, t.q, "store.permission.for_roles",
		`SELECT rp.role_id, p.id, p.name, COALESCE(p.description, '') AS description
		 FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = ANY($1::uuid[])
		 ORDER BY p.name`, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.RoleID] = append(out[r.RoleID], models.Permission{ID: r.ID, Name: r.Name, Description: r.Description})
	}
	return out, nil
}
