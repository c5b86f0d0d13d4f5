package quota

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/config"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/plan"
	"github.com/nikhilbhutani/tenantguard/internal/store"
	"github.com/nikhilbhutani/tenantguard/internal/store/memory"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setup creates a tenant subscribed to a plan with the given limits.
func setup(t *testing.T, userLimit, storageGB int) (*memory.Store, *Enforcer, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	s, err := memory.New()
	require.NoError(t, err)
	ledger := plan.NewLedger(config.QuotaConfig{Fallback: plan.FallbackDeny}).WithClock(func() time.Time { return now })

	var tenantID uuid.UUID
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		tn, err := tx.CreateTenant(ctx, "acme", models.TenantActive)
		if err != nil {
			return err
		}
		tenantID = tn.ID
		p, err := ledger.CreatePlan(ctx, tx, models.Plan{Name: "small", UserLimit: userLimit, StorageLimitGB: storageGB})
		if err != nil {
			return err
		}
		_, err = ledger.Subscribe(ctx, tx, tn.ID, p.ID, now.Add(-time.Hour), now.AddDate(0, 1, 0))
		return err
	}))
	return s, NewEnforcer(ledger), tenantID
}

func addUser(ctx context.Context, s *memory.Store, e *Enforcer, tenantID uuid.UUID, email string) error {
	return s.Update(ctx, func(tx store.Tx) error {
		if _, err := e.CheckAndReserve(ctx, tx, tenantID, UserCount, 1); err != nil {
			return err
		}
		_, err := tx.CreateUser(ctx, models.User{TenantID: tenantID, Email: email, Status: models.UserActive})
		return err
	})
}

func TestUserLimitScenario(t *testing.T) {
	ctx := context.Background()
	s, e, tenantID := setup(t, 2, 10)

	require.NoError(t, addUser(ctx, s, e, tenantID, "u1@acme.io"))
	require.NoError(t, addUser(ctx, s, e, tenantID, "u2@acme.io"))

	err := addUser(ctx, s, e, tenantID, "u3@acme.io")
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		n, err := tx.CountSeats(ctx, tenantID)
		assert.Equal(t, 2, n)
		return err
	}))
}

func TestDisabledUsersFreeSeats(t *testing.T) {
	ctx := context.Background()
	s, e, tenantID := setup(t, 1, 0)
	require.NoError(t, addUser(ctx, s, e, tenantID, "u1@acme.io"))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		u, err := tx.GetUserByEmail(ctx, tenantID, "u1@acme.io")
		if err != nil {
			return err
		}
		_, err = tx.UpdateUserStatus(ctx, u.ID, models.UserDisabled)
		return err
	}))
	require.NoError(t, addUser(ctx, s, e, tenantID, "u2@acme.io"))
}

func TestConcurrentReservationsNeverOvershoot(t *testing.T) {
	ctx := context.Background()
	const limit, attempts = 5, 25
	s, e, tenantID := setup(t, limit, 0)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, deny int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := addUser(ctx, s, e, tenantID, fmt.Sprintf("u%d@acme.io", i))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.KindOf(err) == apperr.KindQuotaExceeded {
				deny++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, limit, ok)
	assert.Equal(t, attempts-limit, deny)
}

func TestStorageReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	s, e, tenantID := setup(t, 1, 10)

	reserve := func(gb int) error {
		return s.Update(ctx, func(tx store.Tx) error {
			_, err := e.CheckAndReserve(ctx, tx, tenantID, StorageGB, gb)
			return err
		})
	}

	require.NoError(t, reserve(7))
	require.ErrorIs(t, reserve(4), apperr.ErrQuotaExceeded)
	require.NoError(t, reserve(3))
	require.NoError(t, reserve(-20))

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		u, err := e.Usage(ctx, tx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 0, u.StorageGB)
		assert.Equal(t, 10, u.Limits.StorageLimitGB)
		return nil
	}))
}

func TestHugeDeltasAreRejected(t *testing.T) {
	ctx := context.Background()
	s, e, tenantID := setup(t, 2, 10)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		_, err := e.CheckAndReserve(ctx, tx, tenantID, StorageGB, 7)
		return err
	}))

	tests := []struct {
		name  string
		kind  Kind
		delta int
		want  error
	}{
		{"storage max int", StorageGB, math.MaxInt, apperr.ErrInvalid},
		{"storage min int", StorageGB, math.MinInt, apperr.ErrInvalid},
		{"storage max int32", StorageGB, MaxDelta, apperr.ErrQuotaExceeded},
		{"users max int", UserCount, math.MaxInt, apperr.ErrInvalid},
		{"users max int32", UserCount, MaxDelta, apperr.ErrQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Update(ctx, func(tx store.Tx) error {
				_, err := e.CheckAndReserve(ctx, tx, tenantID, tt.kind, tt.delta)
				return err
			})
			require.ErrorIs(t, err, tt.want)

			err = s.Update(ctx, func(tx store.Tx) error {
				_, err := e.Check(ctx, tx, tenantID, tt.kind, tt.delta)
				return err
			})
			require.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		used, err := tx.StorageUsed(ctx, tenantID)
		assert.Equal(t, 7, used)
		return err
	}))
}

func TestCheckDoesNotReserve(t *testing.T) {
	ctx := context.Background()
	s, e, tenantID := setup(t, 1, 10)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		r, err := e.Check(ctx, tx, tenantID, StorageGB, 10)
		require.NoError(t, err)
		assert.Equal(t, Reservation{Kind: StorageGB, Current: 0, Delta: 10, Limit: 10}, r)

		used, err := tx.StorageUsed(ctx, tenantID)
		assert.Equal(t, 0, used)
		return err
	}))
}

func TestNoSubscriptionDeniesByDefault(t *testing.T) {
	ctx := context.Background()
	s, err := memory.New()
	require.NoError(t, err)
	e := NewEnforcer(plan.NewLedger(config.QuotaConfig{Fallback: plan.FallbackDeny}))

	err = s.Update(ctx, func(tx store.Tx) error {
		tn, err := tx.CreateTenant(ctx, "acme", models.TenantTrial)
		if err != nil {
			return err
		}
		_, err = e.CheckAndReserve(ctx, tx, tn.ID, UserCount, 1)
		return err
	})
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)
}

func TestInvalidRequests(t *testing.T) {
	ctx := context.Background()
	s, e, tenantID := setup(t, 1, 1)

	err := s.Update(ctx, func(tx store.Tx) error {
		_, err := e.CheckAndReserve(ctx, tx, tenantID, Kind("api_calls"), 1)
		return err
	})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := e.CheckAndReserve(ctx, tx, uuid.New(), StorageGB, 1)
		return err
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
