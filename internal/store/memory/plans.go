package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
)

func (t *tx) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := p
	if err := t.insert(tablePlans, &row); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *tx) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	p, err := first[models.Plan](t, tablePlans, indexID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("store.plan.get", "plan %s", id)
	}
	return p, nil
}

func (t *tx) ListPlans(ctx context.Context) ([]models.Plan, error) {
	out, err := list[models.Plan](t, tablePlans, indexID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (t *tx) CreateSubscription(ctx context.Context, s models.Subscription) (*models.Subscription, error) {
	if _, err := t.GetTenant(ctx, s.TenantID); err != nil {
		return nil, err
	}
	if _, err := t.GetPlan(ctx, s.PlanID); err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	row := s
	if err := t.insert(tableSubscriptions, &row); err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *tx) ListSubscriptions(ctx context.Context, tenantID uuid.UUID) ([]models.Subscription, error) {
	out, err := list[models.Subscription](t, tableSubscriptions, indexTenant, tenantID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CurrentPeriodStart.After(out[j].CurrentPeriodStart)
	})
	return out, nil
}

func (t *tx) ActiveSubscription(ctx context.Context, tenantID uuid.UUID, now time.Time) (*models.Subscription, error) {
	subs, err := t.ListSubscriptions(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].CoversAt(now) {
			return &subs[i], nil
		}
	}
	return nil, apperr.NotFound("store.subscription.active", "no active subscription for tenant %s", tenantID)
}

func (t *tx) SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status models.SubscriptionStatus) error {
	s, err := first[models.Subscription](t, tableSubscriptions, indexID, id)
	if err != nil {
		return err
	}
	if s == nil {
		return apperr.NotFound("store.subscription.status", "subscription %s", id)
	}
	s.Status = status
	return t.insert(tableSubscriptions, s)
}

func (t *tx) StorageUsed(ctx context.Context, tenantID uuid.UUID) (int, error) {
	r, err := first[models.StorageReservation](t, tableStorage, indexID, tenantID)
	if err != nil {
		return 0, err
	}
	if r == nil {
		return 0, nil
	}
	return r.UsedGB, nil
}

func (t *tx) SetStorageUsed(ctx context.Context, tenantID uuid.UUID, gb int) error {
	if _, err := t.GetTenant(ctx, tenantID); err != nil {
		return err
	}
	return t.insert(tableStorage, &models.StorageReservation{TenantID: tenantID, UsedGB: gb, UpdatedAt: t.s.now()})
}
