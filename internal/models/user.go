package models

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserInvited  UserStatus = "invited"
	UserActive   UserStatus = "active"
	UserDisabled UserStatus = "disabled"
)

func (s UserStatus) rank() int {
	switch s {
	case UserInvited:
		return 0
	case UserActive:
		return 1
	case UserDisabled:
		return 2
	}
	return -1
}

// CanTransition allows only forward moves: invited -> active -> disabled.
// Disabling an invited user directly is allowed.
func (s UserStatus) CanTransition(next UserStatus) bool {
	if s.rank() < 0 || next.rank() < 0 {
		return false
	}
	return next.rank() > s.rank()
}

type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	TenantID     uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Status       UserStatus `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
