package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
	"github.com/nikhilbhutani/tenantguard/internal/store/memory"
)

func setup(t *testing.T) (*memory.Store, *Store, uuid.UUID, uuid.UUID) {
	t.Helper()
	s, err := memory.New()
	require.NoError(t, err)
	var a, b uuid.UUID
	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		ta, err := tx.CreateTenant(context.Background(), "acme", models.TenantActive)
		if err != nil {
			return err
		}
		tb, err := tx.CreateTenant(context.Background(), "globex", models.TenantActive)
		if err != nil {
			return err
		}
		a, b = ta.ID, tb.ID
		return nil
	}))
	return s, New().WithCost(bcrypt.MinCost), a, b
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Alice@Acme.IO ")
	require.NoError(t, err)
	assert.Equal(t, "alice@acme.io", got)

	for _, bad := range []string{"", "alice", "Alice <alice@acme.io>"} {
		_, err := NormalizeEmail(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalid, bad)
	}
}

func TestInviteUniquePerTenant(t *testing.T) {
	ctx := context.Background()
	s, ids, acme, globex := setup(t)

	err := s.Update(ctx, func(tx store.Tx) error {
		u, err := ids.Invite(ctx, tx, acme, "Alice@acme.io", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, models.UserInvited, u.Status)
		assert.Equal(t, "alice@acme.io", u.Email)
		assert.True(t, VerifyPassword(u, "correct horse"))
		assert.False(t, VerifyPassword(u, "wrong horse"))

		_, err = ids.Invite(ctx, tx, acme, "alice@ACME.io", "correct horse")
		assert.ErrorIs(t, err, apperr.ErrConflict)

		// the same address is free in another tenant
		_, err = ids.Invite(ctx, tx, globex, "alice@acme.io", "correct horse")
		assert.NoError(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestInviteRejectsShortPassword(t *testing.T) {
	ctx := context.Background()
	s, ids, acme, _ := setup(t)
	err := s.Update(ctx, func(tx store.Tx) error {
		_, err := ids.Invite(ctx, tx, acme, "bob@acme.io", "short")
		return err
	})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestStatusMovesForwardOnly(t *testing.T) {
	ctx := context.Background()
	s, ids, acme, _ := setup(t)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		u, err := ids.Invite(ctx, tx, acme, "bob@acme.io", "password123")
		require.NoError(t, err)

		u, err = ids.SetStatus(ctx, tx, acme, u.ID, models.UserActive)
		require.NoError(t, err)
		assert.Equal(t, models.UserActive, u.Status)

		_, err = ids.SetStatus(ctx, tx, acme, u.ID, models.UserInvited)
		assert.ErrorIs(t, err, apperr.ErrConflict)

		u, err = ids.SetStatus(ctx, tx, acme, u.ID, models.UserDisabled)
		require.NoError(t, err)

		_, err = ids.SetStatus(ctx, tx, acme, u.ID, models.UserActive)
		assert.ErrorIs(t, err, apperr.ErrConflict)
		return nil
	}))
}

func TestGetHidesOtherTenants(t *testing.T) {
	ctx := context.Background()
	s, ids, acme, globex := setup(t)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		u, err := ids.Invite(ctx, tx, acme, "bob@acme.io", "password123")
		require.NoError(t, err)

		_, err = ids.Get(ctx, tx, globex, u.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = ids.Delete(ctx, tx, globex, u.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = ids.Delete(ctx, tx, acme, u.ID)
		require.NoError(t, err)
		_, err = ids.Get(ctx, tx, acme, u.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		return nil
	}))
}
