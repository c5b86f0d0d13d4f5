package rbac

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

const maxRoleNameLen = 100

// Graph mutates the role-permission graph. Every edge change records the
// affected cache scope in the caller's Invalidation.
type Graph struct {
	logger *slog.Logger
}

func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{logger: logger}
}

// SeedCatalog inserts missing catalog entries and leaves existing ones alone.
func (g *Graph) SeedCatalog(ctx context.Context, tx store.Tx, catalog map[Permission]string) ([]models.Permission, error) {
	out := make([]models.Permission, 0, len(catalog))
	for name, desc := range catalog {
		p, err := tx.CreatePermission(ctx, models.Permission{Name: string(name), Description: desc})
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (g *Graph) CreateRole(ctx context.Context, tx store.Tx, tenantID *uuid.UUID, name string) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxRoleNameLen {
		return nil, apperr.Invalid("rbac.role.create", "role name must be 1-%d characters", maxRoleNameLen)
	}
	return tx.CreateRole(ctx, models.Role{TenantID: tenantID, Name: name})
}

// AssignRole adds the user->role edge. A role scoped to a different tenant is
// rejected as an integrity anomaly and never written.
func (g *Graph) AssignRole(ctx context.Context, tx store.Tx, inv *Invalidation, user *models.User, roleID uuid.UUID) (bool, error) {
	role, err := tx.GetRole(ctx, roleID)
	if err != nil {
		return false, err
	}
	if !role.UsableBy(user.TenantID) {
		g.logger.Warn("rejected cross-tenant role assignment",
			"kind", apperr.KindIntegrityAnomaly,
			"tenant_id", user.TenantID,
			"user_id", user.ID,
			"role_id", role.ID,
			"role_tenant_id", role.TenantID,
		)
		return false, apperr.IntegrityAnomaly("rbac.role.assign", "role %s is not usable in tenant %s", role.ID, user.TenantID)
	}

	created, err := tx.AssignRole(ctx, user.ID, role.ID)
	if err != nil {
		return false, err
	}
	if created {
		inv.Tenant(user.TenantID)
	}
	return created, nil
}

func (g *Graph) RevokeRole(ctx context.Context, tx store.Tx, inv *Invalidation, user *models.User, roleID uuid.UUID) (bool, error) {
	removed, err := tx.RevokeRole(ctx, user.ID, roleID)
	if err != nil {
		return false, err
	}
	if removed {
		inv.Tenant(user.TenantID)
	}
	return removed, nil
}

func (g *Graph) GrantPermission(ctx context.Context, tx store.Tx, inv *Invalidation, role *models.Role, permission string) (bool, error) {
	p, err := tx.GetPermissionByName(ctx, permission)
	if err != nil {
		return false, err
	}
	granted, err := tx.GrantPermission(ctx, role.ID, p.ID)
	if err != nil {
		return false, err
	}
	if granted {
		inv.Role(role.TenantID)
	}
	return granted, nil
}

func (g *Graph) RevokePermission(ctx context.Context, tx store.Tx, inv *Invalidation, role *models.Role, permission string) (bool, error) {
	p, err := tx.GetPermissionByName(ctx, permission)
	if err != nil {
		return false, err
	}
	revoked, err := tx.RevokePermission(ctx, role.ID, p.ID)
	if err != nil {
		return false, err
	}
	if revoked {
		inv.Role(role.TenantID)
	}
	return revoked, nil
}
