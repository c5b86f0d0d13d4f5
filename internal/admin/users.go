package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/audit"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/quota"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

// InviteUser adds an invited user to the actor's tenant. The new seat is
// checked against user_count under the tenant lock.
func (s *Service) InviteUser(ctx context.Context, actor Actor, email, password string) (*models.User, error) {
	var u *models.User
	err := s.run(ctx, "invite user", actor, rbac.PermManageUsers, func(o *op) error {
		if _, err := s.quota.CheckAndReserve(ctx, o.tx, actor.TenantID, quota.UserCount, 1); err != nil {
			return err
		}
		var err error
		if u, err = s.users.Invite(ctx, o.tx, actor.TenantID, email, password); err != nil {
			return err
		}
		return o.record(audit.UserInvited, map[string]any{"user_id": u.ID, "email": u.Email})
	})
	return u, err
}

func (s *Service) ActivateUser(ctx context.Context, actor Actor, userID uuid.UUID) (*models.User, error) {
	return s.setUserStatus(ctx, "activate user", actor, userID, models.UserActive, audit.UserActivated)
}

// DisableUser frees the user's seat and empties their permission set.
func (s *Service) DisableUser(ctx context.Context, actor Actor, userID uuid.UUID) (*models.User, error) {
	return s.setUserStatus(ctx, "disable user", actor, userID, models.UserDisabled, audit.UserDisabled)
}

func (s *Service) setUserStatus(ctx context.Context, name string, actor Actor, userID uuid.UUID, next models.UserStatus, action audit.Action) (*models.User, error) {
	var u *models.User
	err := s.run(ctx, name, actor, rbac.PermManageUsers, func(o *op) error {
		var err error
		if u, err = s.users.SetStatus(ctx, o.tx, actor.TenantID, userID, next); err != nil {
			return err
		}
		o.inv.Tenant(actor.TenantID)
		return o.record(action, map[string]any{"user_id": u.ID, "email": u.Email})
	})
	return u, err
}

// DeleteUser removes a user. Users still referenced by audit records,
// projects or tasks cannot be deleted; disable them instead.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error {
	return s.run(ctx, "delete user", actor, rbac.PermManageUsers, func(o *op) error {
		u, err := s.users.Delete(ctx, o.tx, actor.TenantID, userID)
		if err != nil {
			return err
		}
		o.inv.Tenant(actor.TenantID)
		return o.record(audit.UserDeleted, map[string]any{"user_id": u.ID, "email": u.Email})
	})
}

func (s *Service) ListUsers(ctx context.Context, actor Actor) ([]models.User, error) {
	var out []models.User
	err := s.view(ctx, "list users", actor, rbac.PermManageUsers, func(tx store.Tx) error {
		var err error
		out, err = s.users.List(ctx, tx, actor.TenantID)
		return err
	})
	return out, err
}
