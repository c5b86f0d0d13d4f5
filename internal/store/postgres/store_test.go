package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/config"
	"github.com/nikhilbhutani/tenantguard/internal/database"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/plan"
	"github.com/nikhilbhutani/tenantguard/internal/quota"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, apperr.KindConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, apperr.KindNotFound},
		{"serialization", &pgconn.PgError{Code: "40001"}, apperr.KindStoreUnavailable},
		{"connection", &pgconn.PgError{Code: "08006"}, apperr.KindStoreUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, apperr.KindStoreUnavailable},
		{"syntax", &pgconn.PgError{Code: "42601"}, apperr.KindInternal},
		{"deadline", context.DeadlineExceeded, apperr.KindStoreUnavailable},
		{"canceled", context.Canceled, apperr.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, apperr.KindOf(mapErr("op", tc.err)))
		})
	}
	assert.NoError(t, mapErr("op", nil))
	assert.True(t, errors.Is(mapErr("op", context.Canceled), context.Canceled))
}

// Integration tests below need a disposable database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.RunMigrations(ctx, pool))
	return New(pool)
}

func TestPostgresUniqueEmailAndCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var tn *models.Tenant
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		var err error
		tn, err = tx.CreateTenant(ctx, "pg-acme", models.TenantTrial)
		if err != nil {
			return err
		}
		u, err := tx.CreateUser(ctx, models.User{TenantID: tn.ID, Email: "a@acme.io", PasswordHash: "x"})
		if err != nil {
			return err
		}
		_, err = tx.InsertAudit(ctx, models.AuditLog{TenantID: tn.ID, UserID: u.ID, Action: "user.invited"})
		return err
	}))

	err := s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.CreateUser(ctx, models.User{TenantID: tn.ID, Email: "a@acme.io", PasswordHash: "x"})
		return err
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.DeleteTenant(ctx, tn.ID) }))
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		users, err := tx.ListUsers(ctx, tn.ID)
		require.NoError(t, err)
		assert.Empty(t, users)
		logs, err := tx.ListAudit(ctx, tn.ID, store.AuditFilter{})
		require.NoError(t, err)
		assert.Empty(t, logs)
		return nil
	}))
}

// subscribedTenant creates a tenant on a fresh plan and removes it when the
// test ends.
func subscribedTenant(t *testing.T, s *Store, ledger *plan.Ledger, userLimit int) (*models.Tenant, *models.Plan) {
	t.Helper()
	ctx := context.Background()
	var tn *models.Tenant
	var p *models.Plan
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		var err error
		if tn, err = tx.CreateTenant(ctx, "pg-"+t.Name(), models.TenantActive); err != nil {
			return err
		}
		if p, err = ledger.CreatePlan(ctx, tx, models.Plan{Name: "pg-" + t.Name(), UserLimit: userLimit, StorageLimitGB: 1}); err != nil {
			return err
		}
		now := ledger.Now()
		_, err = ledger.Subscribe(ctx, tx, tn.ID, p.ID, now.Add(-time.Hour), now.AddDate(0, 1, 0))
		return err
	}))
	t.Cleanup(func() {
		_ = s.Update(context.Background(), func(tx store.Tx) error { return tx.DeleteTenant(context.Background(), tn.ID) })
	})
	return tn, p
}

// The tenant row lock makes the seat count and the insert atomic: with one
// seat left, two racing invites admit exactly one.
func TestPostgresConcurrentInvitesRespectLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ledger := plan.NewLedger(config.QuotaConfig{Fallback: plan.FallbackDeny})
	enforcer := quota.NewEnforcer(ledger)

	const limit = 3
	tn, _ := subscribedTenant(t, s, ledger, limit)

	invite := func(email string) error {
		return s.Update(ctx, func(tx store.Tx) error {
			if _, err := enforcer.CheckAndReserve(ctx, tx, tn.ID, quota.UserCount, 1); err != nil {
				return err
			}
			_, err := tx.CreateUser(ctx, models.User{TenantID: tn.ID, Email: email, PasswordHash: "x", Status: models.UserActive})
			return err
		})
	}
	for i := 0; i < limit-1; i++ {
		require.NoError(t, invite(fmt.Sprintf("seat%d@acme.io", i)))
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = invite(fmt.Sprintf("race%d@acme.io", i))
		}(i)
	}
	wg.Wait()

	exceeded := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, apperr.ErrQuotaExceeded)
			exceeded++
		}
	}
	assert.Equal(t, 1, exceeded)

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		seats, err := tx.CountSeats(ctx, tn.ID)
		assert.Equal(t, limit, seats)
		return err
	}))
}

func TestPostgresConcurrentSubscribesLeaveOneActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ledger := plan.NewLedger(config.QuotaConfig{Fallback: plan.FallbackDeny})
	tn, p := subscribedTenant(t, s, ledger, 5)

	const n = 4
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, func(tx store.Tx) error {
				now := ledger.Now()
				_, err := ledger.Subscribe(ctx, tx, tn.ID, p.ID, now.Add(-time.Minute), now.AddDate(0, 1, 0))
				return err
			}))
		}()
	}
	wg.Wait()

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		subs, err := tx.ListSubscriptions(ctx, tn.ID)
		require.NoError(t, err)
		assert.Len(t, subs, n+1)
		active := 0
		for _, sub := range subs {
			if sub.Status == models.SubscriptionActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
		return nil
	}))
}
