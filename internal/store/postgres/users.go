package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
)

const userCols = "id, tenant_id, email, password_hash, status, created_at, updated_at"

func (t *tx) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	status := u.Status
	if status == "" {
		status = models.UserInvited
	}
	return one[models.User](ctx, t.q, "store.user.create",
		`INSERT INTO users (tenant_id, email, password_hash, status) VALUES ($1, $2, $3, $4)
		 RETURNING `+userCols,
		u.TenantID, u.Email, u.PasswordHash, status)
}

func (t *tx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return one[models.User](ctx, t.q, "store.user.get",
		`SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (t *tx) GetUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error) {
	return one[models.User](ctx, t.q, "store.user.by_email",
		`SELECT `+userCols+` FROM users WHERE tenant_id = $1 AND email = $2`, tenantID, email)
}

func (t *tx) ListUsers(ctx context.Context, tenantID uuid.UUID) ([]models.User, error) {
	return many[models.User](ctx, t.q, "store.user.list",
		`SELECT `+userCols+` FROM users WHERE tenant_id = $1 ORDER BY email`, tenantID)
}

func (t *tx) CountSeats(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := t.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND status <> 'disabled'`, tenantID,
	).Scan(&n)
	if err != nil {
		return 0, mapErr("store.user.count", err)
	}
	return n, nil
}

func (t *tx) UpdateUserStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) (*models.User, error) {
	return one[models.User](ctx, t.q, "store.user.status",
		`UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userCols, id, status)
}

func (t *tx) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		// audit_logs, projects and tasks reference users without cascading
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return apperr.Wrap(apperr.KindConflict, "store.user.delete", err)
		}
		return mapErr("store.user.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("store.user.delete", "user %s", id)
	}
	return nil
}
