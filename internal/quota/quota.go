// Package quota enforces plan limits. Every check locks the tenant row first,
// so concurrent reservations against one tenant are serialized and can never
// jointly overshoot a limit.
package quota

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/plan"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

type Kind string

// MaxDelta bounds a single request; usage columns are 32-bit.
const MaxDelta = math.MaxInt32

const (
	UserCount Kind = "user_count"
	StorageGB Kind = "storage_gb"
)

func (k Kind) Valid() bool {
	return k == UserCount || k == StorageGB
}

// Reservation describes an accepted check. Current is the usage before the
// reservation.
type Reservation struct {
	Kind    Kind `json:"kind"`
	Current int  `json:"current"`
	Delta   int  `json:"delta"`
	Limit   int  `json:"limit"`
}

type Usage struct {
	Limits    plan.Limits `json:"limits"`
	Users     int         `json:"users"`
	StorageGB int         `json:"storage_gb"`
}

type Enforcer struct {
	ledger *plan.Ledger
}

func NewEnforcer(ledger *plan.Ledger) *Enforcer {
	return &Enforcer{ledger: ledger}
}

// CheckAndReserve admits delta units of kind for the tenant or fails with
// QuotaExceeded. For storage_gb the counter is moved inside tx; a negative
// delta releases storage and never drops below zero. For user_count the
// caller's insert in the same tx is the reservation.
func (e *Enforcer) CheckAndReserve(ctx context.Context, tx store.Tx, tenantID uuid.UUID, kind Kind, delta int) (Reservation, error) {
	return e.check(ctx, tx, tenantID, kind, delta, true)
}

// Check is CheckAndReserve without the storage write.
func (e *Enforcer) Check(ctx context.Context, tx store.Tx, tenantID uuid.UUID, kind Kind, delta int) (Reservation, error) {
	return e.check(ctx, tx, tenantID, kind, delta, false)
}

func (e *Enforcer) check(ctx context.Context, tx store.Tx, tenantID uuid.UUID, kind Kind, delta int, reserve bool) (Reservation, error) {
	if !kind.Valid() {
		return Reservation{}, apperr.Invalid("quota.check", "unknown quota kind %q", kind)
	}
	if kind == UserCount && delta < 0 {
		return Reservation{}, apperr.Invalid("quota.check", "user_count is released by disabling users")
	}
	if delta > MaxDelta || delta < -MaxDelta {
		return Reservation{}, apperr.Invalid("quota.check", "delta %d out of range", delta)
	}

	if _, err := tx.LockTenant(ctx, tenantID); err != nil {
		return Reservation{}, err
	}
	lim, err := e.ledger.Limits(ctx, tx, tenantID)
	if err != nil {
		return Reservation{}, fmt.Errorf("resolve limits: %w", err)
	}

	r := Reservation{Kind: kind, Delta: delta}
	switch kind {
	case UserCount:
		r.Limit = lim.UserLimit
		r.Current, err = tx.CountSeats(ctx, tenantID)
	case StorageGB:
		r.Limit = lim.StorageLimitGB
		r.Current, err = tx.StorageUsed(ctx, tenantID)
	}
	if err != nil {
		return Reservation{}, err
	}

	// Limit-Current cannot overflow: both are bounded by the 32-bit columns.
	if delta > 0 && delta > r.Limit-r.Current {
		return Reservation{}, apperr.QuotaExceeded("quota.check", "%s %d+%d exceeds limit %d (%s)",
			kind, r.Current, delta, r.Limit, lim.Source)
	}

	if reserve && kind == StorageGB && delta != 0 {
		if err := tx.SetStorageUsed(ctx, tenantID, max(r.Current+delta, 0)); err != nil {
			return Reservation{}, err
		}
	}
	return r, nil
}

func (e *Enforcer) Usage(ctx context.Context, tx store.Tx, tenantID uuid.UUID) (Usage, error) {
	if _, err := tx.GetTenant(ctx, tenantID); err != nil {
		return Usage{}, err
	}
	lim, err := e.ledger.Limits(ctx, tx, tenantID)
	if err != nil {
		return Usage{}, err
	}
	users, err := tx.CountSeats(ctx, tenantID)
	if err != nil {
		return Usage{}, err
	}
	storage, err := tx.StorageUsed(ctx, tenantID)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Limits: lim, Users: users, StorageGB: storage}, nil
}
