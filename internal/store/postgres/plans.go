package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
)

const (
	planCols = "id, name, price, user_limit, storage_limit_gb, COALESCE(features, '{}'::jsonb) AS features"
	subCols  = "id, tenant_id, plan_id, status, current_period_start, current_period_end"
)

func (t *tx) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	var features []byte
	if len(p.Features) > 0 {
		features = p.Features
	}
	return one[models.Plan](ctx, t.q, "store.plan.create",
		`INSERT INTO plans (name, price, user_limit, storage_limit_gb, features)
		 VALUES ($1, $2, $3, $4, $5) RETURNING `+planCols,
		p.Name, p.Price, p.UserLimit, p.StorageLimitGB, features)
}

func (t *tx) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return one[models.Plan](ctx, t.q, "store.plan.get",
		`SELECT `+planCols+` FROM plans WHERE id = $1`, id)
}

func (t *tx) ListPlans(ctx context.Context) ([]models.Plan, error) {
	return many[models.Plan](ctx, t.q, "store.plan.list",
		`SELECT `+planCols+` FROM plans ORDER BY price, name`)
}

func (t *tx) CreateSubscription(ctx context.Context, s models.Subscription) (*models.Subscription, error) {
	return one[models.Subscription](ctx, t.q, "store.subscription.create",
		`INSERT INTO subscriptions (tenant_id, plan_id, status, current_period_start, current_period_end)
		 VALUES ($1, $2, $3, $4, $5) RETURNING `+subCols,
		s.TenantID, s.PlanID, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd)
}

func (t *tx) ListSubscriptions(ctx context.Context, tenantID uuid.UUID) ([]models.Subscription, error) {
	return many[models.Subscription](ctx, t.q, "store.subscription.list",
		`SELECT `+subCols+` FROM subscriptions WHERE tenant_id = $1 ORDER BY current_period_start DESC`, tenantID)
}

func (t *tx) ActiveSubscription(ctx context.Context, tenantID uuid.UUID, now time.Time) (*models.Subscription, error) {
	return one[models.Subscription](ctx, t.q, "store.subscription.active",
		`SELECT `+subCols+` FROM subscriptions
		 WHERE tenant_id = $1 AND status = 'active'
		   AND current_period_start <= $2 AND $2 < current_period_end
		 ORDER BY current_period_start DESC LIMIT 1`, tenantID, now)
}

func (t *tx) SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status models.SubscriptionStatus) error {
	n, err := t.exec(ctx, "store.subscription.status",
		`UPDATE subscriptions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("store.subscription.status", "subscription %s", id)
	}
	return nil
}

func (t *tx) StorageUsed(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var used int
	err := t.q.QueryRow(ctx, `SELECT used_gb FROM storage_reservations WHERE tenant_id = $1`, tenantID).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapErr("store.storage.used", err)
	}
	return used, nil
}

func (t *tx) SetStorageUsed(ctx context.Context, tenantID uuid.UUID, gb int) error {
	_, err := t.exec(ctx, "store.storage.set",
		`INSERT INTO storage_reservations (tenant_id, used_gb) VALUES ($1, $2)
		 ON CONFLICT (tenant_id) DO UPDATE SET used_gb = EXCLUDED.used_gb, updated_at = NOW()`,
		tenantID, gb)
	return err
}
