package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
)

const tenantCols = "id, name, status, created_at, updated_at"

func (t *tx) CreateTenant(ctx context.Context, name string, status models.TenantStatus) (*models.Tenant, error) {
	return one[models.Tenant](ctx, t.q, "store.tenant.create",
		`INSERT INTO tenants (name, status) VALUES ($1, $2) RETURNING `+tenantCols, name, status)
}

func (t *tx) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return one[models.Tenant](ctx, t.q, "store.tenant.get",
		`SELECT `+tenantCols+` FROM tenants WHERE id = $1`, id)
}

func (t *tx) LockTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return one[models.Tenant](ctx, t.q, "store.tenant.lock",
		`SELECT `+tenantCols+` FROM tenants WHERE id = $1 FOR UPDATE`, id)
}

func (t *tx) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	return many[models.Tenant](ctx, t.q, "store.tenant.list",
		`SELECT `+tenantCols+` FROM tenants ORDER BY created_at`)
}

func (t *tx) UpdateTenantStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) (*models.Tenant, error) {
	return one[models.Tenant](ctx, t.q, "store.tenant.status",
		`UPDATE tenants SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+tenantCols, id, status)
}

// DeleteTenant relies on the schema's ON DELETE CASCADE chains.
func (t *tx) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	n, err := t.exec(ctx, "store.tenant.delete", `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("store.tenant.delete", "tenant %s", id)
	}
	return nil
}
