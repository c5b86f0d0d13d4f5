package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
	"github.com/nikhilbhutani/tenantguard/internal/store/memory"
)

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s, err := memory.New()
	require.NoError(t, err)
	d := NewDirectory()

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		tn, err := d.Create(ctx, tx, "  Acme  ")
		require.NoError(t, err)
		assert.Equal(t, "Acme", tn.Name)
		assert.Equal(t, models.TenantTrial, tn.Status)

		tn, prev, err := d.SetStatus(ctx, tx, tn.ID, models.TenantActive)
		require.NoError(t, err)
		assert.Equal(t, models.TenantTrial, prev)
		assert.Equal(t, models.TenantActive, tn.Status)

		_, _, err = d.SetStatus(ctx, tx, tn.ID, models.TenantTrial)
		assert.ErrorIs(t, err, apperr.ErrConflict)

		_, _, err = d.SetStatus(ctx, tx, tn.ID, models.TenantSuspended)
		require.NoError(t, err)
		tn, _, err = d.SetStatus(ctx, tx, tn.ID, models.TenantActive)
		require.NoError(t, err)
		assert.Equal(t, models.TenantActive, tn.Status)

		_, _, err = d.SetStatus(ctx, tx, tn.ID, "archived")
		assert.ErrorIs(t, err, apperr.ErrInvalid)

		require.NoError(t, d.Delete(ctx, tx, tn.ID))
		_, err = d.Get(ctx, tx, tn.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		return nil
	}))
}

func TestCreateValidatesName(t *testing.T) {
	ctx := context.Background()
	s, err := memory.New()
	require.NoError(t, err)

	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := NewDirectory().Create(ctx, tx, " ")
		return err
	})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}
