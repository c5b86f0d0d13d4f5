package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/audit"
	"github.com/nikhilbhutani/tenantguard/internal/identity"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

func (s *Service) Permissions(ctx context.Context, actor Actor) (rbac.Set, error) {
	if err := actor.valid(); err != nil {
		return nil, err
	}
	return s.engine.EffectivePermissions(ctx, actor.TenantID, actor.UserID)
}

// Authorize evaluates perm for subject, a user of the actor's tenant. Asking
// about anyone but oneself requires manage_users.
func (s *Service) Authorize(ctx context.Context, actor Actor, subject uuid.UUID, perm rbac.Permission) (rbac.Decision, error) {
	if err := actor.valid(); err != nil {
		return rbac.Decision{}, err
	}
	if subject != uuid.Nil && subject != actor.UserID {
		d, err := s.engine.Authorize(ctx, actor.TenantID, actor.UserID, rbac.PermManageUsers)
		if err != nil {
			return rbac.Decision{}, err
		}
		if err := d.Err(); err != nil {
			return rbac.Decision{}, err
		}
	} else {
		subject = actor.UserID
	}
	return s.engine.Authorize(ctx, actor.TenantID, subject, perm)
}

func (s *Service) ListAudit(ctx context.Context, actor Actor, q audit.Query) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := s.view(ctx, "list audit", actor, rbac.PermViewAudit, func(tx store.Tx) error {
		var err error
		out, err = s.audit.List(ctx, tx, actor.TenantID, q)
		return err
	})
	return out, err
}

// LoadPrincipal fetches the user and tenant behind an authenticated request.
func (s *Service) LoadPrincipal(ctx context.Context, userID uuid.UUID) (*models.Tenant, *models.User, error) {
	var (
		t *models.Tenant
		u *models.User
	)
	err := s.view(ctx, "load principal", Actor{}, "", func(tx store.Tx) error {
		var err error
		if u, err = tx.GetUser(ctx, userID); err != nil {
			return err
		}
		t, err = s.tenants.Get(ctx, tx, u.TenantID)
		return err
	})
	return t, u, err
}

var errInvalidCredentials = apperr.Forbidden("admin.login", "invalid credentials")

// Login checks an email and password within a tenant. Only active users may
// sign in; every other failure looks the same to the caller.
func (s *Service) Login(ctx context.Context, tenantID uuid.UUID, email, password string) (*models.User, error) {
	var u *models.User
	err := s.view(ctx, "login", Actor{}, "", func(tx store.Tx) error {
		var err error
		u, err = s.users.GetByEmail(ctx, tx, tenantID, email)
		return err
	})
	switch apperr.KindOf(err) {
	case "":
	case apperr.KindNotFound, apperr.KindInvalid:
		return nil, errInvalidCredentials
	default:
		return nil, err
	}
	if u.Status != models.UserActive || !identity.VerifyPassword(u, password) {
		return nil, errInvalidCredentials
	}
	return u, nil
}
