package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Plan struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Price          int             `json:"price" db:"price"`
	UserLimit      int             `json:"user_limit" db:"user_limit"`
	StorageLimitGB int             `json:"storage_limit_gb" db:"storage_limit_gb"`
	Features       json.RawMessage `json:"features,omitempty" db:"features"`
}

type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionSuperseded SubscriptionStatus = "superseded"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
)

type Subscription struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	TenantID           uuid.UUID          `json:"tenant_id" db:"tenant_id"`
	PlanID             uuid.UUID          `json:"plan_id" db:"plan_id"`
	Status             SubscriptionStatus `json:"status" db:"status"`
	CurrentPeriodStart time.Time          `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end" db:"current_period_end"`
}

// CoversAt reports whether the subscription is active and now falls inside
// [CurrentPeriodStart, CurrentPeriodEnd).
func (s *Subscription) CoversAt(now time.Time) bool {
	return s.Status == SubscriptionActive &&
		!now.Before(s.CurrentPeriodStart) &&
		now.Before(s.CurrentPeriodEnd)
}

// StorageReservation is the running storage_gb usage counter for a tenant.
type StorageReservation struct {
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	UsedGB    int       `json:"used_gb" db:"used_gb"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
