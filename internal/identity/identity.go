// Package identity manages the users of each tenant.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

const (
	maxEmailLen    = 255
	minPasswordLen = 8
)

type Store struct {
	cost int
}

func New() *Store {
	return &Store{cost: bcrypt.DefaultCost}
}

// WithCost lowers the bcrypt cost, for tests.
func (s *Store) WithCost(cost int) *Store {
	s.cost = cost
	return s
}

// NormalizeEmail trims and lower-cases an address and checks it parses.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > maxEmailLen {
		return "", apperr.Invalid("identity.email", "email must be 1-%d characters", maxEmailLen)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Invalid("identity.email", "malformed email %q", email)
	}
	return email, nil
}

// Get loads a user and hides users of other tenants behind NotFound.
func (s *Store) Get(ctx context.Context, tx store.Tx, tenantID, userID uuid.UUID) (*models.User, error) {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.TenantID != tenantID {
		return nil, apperr.NotFound("identity.get", "user %s", userID)
	}
	return u, nil
}

func (s *Store) GetByEmail(ctx context.Context, tx store.Tx, tenantID uuid.UUID, email string) (*models.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return tx.GetUserByEmail(ctx, tenantID, email)
}

func (s *Store) List(ctx context.Context, tx store.Tx, tenantID uuid.UUID) ([]models.User, error) {
	return tx.ListUsers(ctx, tenantID)
}

// Invite creates a user in status invited. A duplicate email in the same
// tenant is a Conflict.
func (s *Store) Invite(ctx context.Context, tx store.Tx, tenantID uuid.UUID, email, password string) (*models.User, error) {
	return s.create(ctx, tx, tenantID, email, password, models.UserInvited)
}

// CreateActive creates a user that can sign in immediately, used for the
// first administrator of a new tenant.
func (s *Store) CreateActive(ctx context.Context, tx store.Tx, tenantID uuid.UUID, email, password string) (*models.User, error) {
	return s.create(ctx, tx, tenantID, email, password, models.UserActive)
}

func (s *Store) create(ctx context.Context, tx store.Tx, tenantID uuid.UUID, email, password string, status models.UserStatus) (*models.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	return tx.CreateUser(ctx, models.User{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: hash,
		Status:       status,
	})
}

func (s *Store) hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", apperr.Invalid("identity.password", "password must be at least %d characters", minPasswordLen)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.Invalid("identity.password", "password too long")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// VerifyPassword reports whether password matches the user's stored hash.
func VerifyPassword(u *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SetStatus moves a user forward through invited, active and disabled.
// Backward moves and no-op moves are Conflicts.
func (s *Store) SetStatus(ctx context.Context, tx store.Tx, tenantID, userID uuid.UUID, next models.UserStatus) (*models.User, error) {
	u, err := s.Get(ctx, tx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if !u.Status.CanTransition(next) {
		return nil, apperr.Conflict("identity.status", "user cannot move from %s to %s", u.Status, next)
	}
	return tx.UpdateUserStatus(ctx, userID, next)
}

func (s *Store) Delete(ctx context.Context, tx store.Tx, tenantID, userID uuid.UUID) (*models.User, error) {
	u, err := s.Get(ctx, tx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteUser(ctx, userID); err != nil {
		return nil, err
	}
	return u, nil
}
