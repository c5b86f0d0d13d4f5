package tenant

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

const maxNameLen = 255

// Directory is the registry of tenants and their lifecycle.
type Directory struct{}

func NewDirectory() *Directory {
	return &Directory{}
}

// Create registers a tenant in status trial.
func (d *Directory) Create(ctx context.Context, tx store.Tx, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return nil, apperr.Invalid("tenant.create", "tenant name must be 1-%d characters", maxNameLen)
	}
	return tx.CreateTenant(ctx, name, models.TenantTrial)
}

func (d *Directory) Get(ctx context.Context, tx store.Tx, id uuid.UUID) (*models.Tenant, error) {
	return tx.GetTenant(ctx, id)
}

func (d *Directory) List(ctx context.Context, tx store.Tx) ([]models.Tenant, error) {
	return tx.ListTenants(ctx)
}

// SetStatus applies a lifecycle transition and returns the updated tenant and
// its previous status. Illegal transitions are Conflicts.
func (d *Directory) SetStatus(ctx context.Context, tx store.Tx, id uuid.UUID, next models.TenantStatus) (*models.Tenant, models.TenantStatus, error) {
	if !next.Valid() {
		return nil, "", apperr.Invalid("tenant.status", "unknown tenant status %q", next)
	}
	t, err := tx.LockTenant(ctx, id)
	if err != nil {
		return nil, "", err
	}
	prev := t.Status
	if !prev.CanTransition(next) {
		return nil, "", apperr.Conflict("tenant.status", "tenant cannot move from %s to %s", prev, next)
	}
	if prev == next {
		return t, prev, nil
	}
	t, err = tx.UpdateTenantStatus(ctx, id, next)
	if err != nil {
		return nil, "", err
	}
	return t, prev, nil
}

// Delete removes the tenant; every tenant-owned row cascades with it.
func (d *Directory) Delete(ctx context.Context, tx store.Tx, id uuid.UUID) error {
	return tx.DeleteTenant(ctx, id)
}
