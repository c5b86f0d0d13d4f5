package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
)

func (t *tx) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	if _, err := t.GetTenant(ctx, u.TenantID); err != nil {
		return nil, err
	}
	dup, err := first[models.User](t, tableUsers, indexTenantEmail, u.TenantID, u.Email)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, apperr.Conflict("store.user.create", "email %q already exists in tenant", u.Email)
	}

	now := t.s.now()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = models.UserInvited
	}
	u.CreatedAt, u.UpdatedAt = now, now
	row := u
	if err := t.insert(tableUsers, &row); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *tx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := first[models.User](t, tableUsers, indexID, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("store.user.get", "user %s", id)
	}
	return u, nil
}

func (t *tx) GetUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error) {
	u, err := first[models.User](t, tableUsers, indexTenantEmail, tenantID, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("store.user.by_email", "user %q", email)
	}
	return u, nil
}

func (t *tx) ListUsers(ctx context.Context, tenantID uuid.UUID) ([]models.User, error) {
	out, err := list[models.User](t, tableUsers, indexTenant, tenantID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (t *tx) CountSeats(ctx context.Context, tenantID uuid.UUID) (int, error) {
	users, err := list[models.User](t, tableUsers, indexTenant, tenantID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, u := range users {
		if u.Status != models.UserDisabled {
			n++
		}
	}
	return n, nil
}

func (t *tx) UpdateUserStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) (*models.User, error) {
	u, err := t.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Status = status
	u.UpdatedAt = t.s.now()
	if err := t.insert(tableUsers, u); err != nil {
		return nil, err
	}
	out := *u
	return &out, nil
}

// DeleteUser refuses users still referenced by audit logs, projects or task
// assignments, matching the non-cascading foreign keys on those tables.
func (t *tx) DeleteUser(ctx context.Context, id uuid.UUID) error {
	u, err := t.GetUser(ctx, id)
	if err != nil {
		return err
	}
	refs := []struct{ table, index string }{
		{tableAuditLogs, indexUser},
		{tableProjects, indexCreatedBy},
		{tableTasks, indexAssignee},
	}
	for _, ref := range refs {
		raw, err := t.txn.First(ref.table, ref.index, id)
		if err != nil {
			return err
		}
		if raw != nil {
			return apperr.Conflict("store.user.delete", "user %s is still referenced by %s", id, ref.table)
		}
	}
	if err := t.deleteAll(tableUserRoles, indexUser, id); err != nil {
		return err
	}
	return t.delete(tableUsers, u)
}
