package models

import (
	"time"

	"github.com/google/uuid"
)

type TenantStatus string

const (
	TenantTrial     TenantStatus = "trial"
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

func (s TenantStatus) Valid() bool {
	switch s {
	case TenantTrial, TenantActive, TenantSuspended:
		return true
	}
	return false
}

// CanTransition reports whether a tenant may move from s to next. Status only
// moves forward (trial, active, suspended) with the single exception of
// reactivating a suspended tenant.
func (s TenantStatus) CanTransition(next TenantStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case TenantTrial:
		return next == TenantActive || next == TenantSuspended
	case TenantActive:
		return next == TenantSuspended
	case TenantSuspended:
		return next == TenantActive
	}
	return false
}

type Tenant struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Status    TenantStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}
