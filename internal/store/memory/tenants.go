package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
)

func (t *tx) CreateTenant(ctx context.Context, name string, status models.TenantStatus) (*models.Tenant, error) {
	now := t.s.now()
	tn := &models.Tenant{ID: uuid.New(), Name: name, Status: status, CreatedAt: now, UpdatedAt: now}
	if err := t.insert(tableTenants, tn); err != nil {
		return nil, err
	}
	out := *tn
	return &out, nil
}

func (t *tx) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tn, err := first[models.Tenant](t, tableTenants, indexID, id)
	if err != nil {
		return nil, err
	}
	if tn == nil {
		return nil, apperr.NotFound("store.tenant.get", "tenant %s", id)
	}
	return tn, nil
}

// LockTenant needs no extra locking here: the surrounding write transaction
// already holds memdb's writer lock.
func (t *tx) LockTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return t.GetTenant(ctx, id)
}

func (t *tx) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	out, err := list[models.Tenant](t, tableTenants, indexID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) UpdateTenantStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) (*models.Tenant, error) {
	tn, err := t.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	tn.Status = status
	tn.UpdatedAt = t.s.now()
	if err := t.insert(tableTenants, tn); err != nil {
		return nil, err
	}
	out := *tn
	return &out, nil
}

// DeleteTenant mirrors the ON DELETE CASCADE chains hanging off tenants.
func (t *tx) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	if _, err := t.GetTenant(ctx, id); err != nil {
		return err
	}

	roles, err := list[models.Role](t, tableRoles, indexTenant, id)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if err := t.deleteAll(tableUserRoles, indexRole, r.ID); err != nil {
			return err
		}
		if err := t.deleteAll(tableRolePermissions, indexRole, r.ID); err != nil {
			return err
		}
	}
	if err := t.deleteAll(tableRoles, indexTenant, id); err != nil {
		return err
	}

	users, err := list[models.User](t, tableUsers, indexTenant, id)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := t.deleteAll(tableUserRoles, indexUser, u.ID); err != nil {
			return err
		}
	}

	for _, tbl := range []string{tableTasks, tableProjects, tableAuditLogs, tableSubscriptions, tableUsers} {
		if err := t.deleteAll(tbl, indexTenant, id); err != nil {
			return err
		}
	}
	if err := t.deleteAll(tableStorage, indexID, id); err != nil {
		return err
	}
	return t.deleteAll(tableTenants, indexID, id)
}
