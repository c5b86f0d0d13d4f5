// Package plan owns plans and subscriptions and turns them into the quota
// limits a tenant is held to at a given instant.
package plan

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/config"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

const (
	FallbackDeny  = "deny"
	FallbackTrial = "trial"
)

// LimitSource tells where a set of limits came from.
type LimitSource string

const (
	SourcePlan          LimitSource = "plan"
	SourceFallbackDeny  LimitSource = "fallback_deny"
	SourceFallbackTrial LimitSource = "fallback_trial"
)

type Limits struct {
	UserLimit      int         `json:"user_limit"`
	StorageLimitGB int         `json:"storage_limit_gb"`
	Source         LimitSource `json:"source"`
	PlanID         *uuid.UUID  `json:"plan_id,omitempty"`
}

type Ledger struct {
	fallback config.QuotaConfig
	now      func() time.Time
}

func NewLedger(cfg config.QuotaConfig) *Ledger {
	return &Ledger{fallback: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the ledger's time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) Now() time.Time { return l.now() }

func (l *Ledger) CreatePlan(ctx context.Context, tx store.Tx, p models.Plan) (*models.Plan, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, apperr.Invalid("plan.create", "plan name is required")
	}
	if p.Price < 0 || p.UserLimit < 0 || p.StorageLimitGB < 0 {
		return nil, apperr.Invalid("plan.create", "price and limits must be non-negative")
	}
	if p.Price > math.MaxInt32 || p.UserLimit > math.MaxInt32 || p.StorageLimitGB > math.MaxInt32 {
		return nil, apperr.Invalid("plan.create", "price and limits must fit in 32 bits")
	}
	if len(p.Features) == 0 {
		p.Features = EmptyFeatures
	}
	if _, err := ParseFeatures(p.Features); err != nil {
		return nil, err
	}
	return tx.CreatePlan(ctx, p)
}

// PlanByName finds the plan with the given name. Names are not unique in the
// schema, so an ambiguous name is a Conflict.
func (l *Ledger) PlanByName(ctx context.Context, tx store.Tx, name string) (*models.Plan, error) {
	plans, err := tx.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	var found *models.Plan
	for i := range plans {
		if plans[i].Name != name {
			continue
		}
		if found != nil {
			return nil, apperr.Conflict("plan.by_name", "plan name %q is ambiguous", name)
		}
		found = &plans[i]
	}
	if found == nil {
		return nil, apperr.NotFound("plan.by_name", "plan %q", name)
	}
	return found, nil
}

func (l *Ledger) GetPlan(ctx context.Context, tx store.Tx, id uuid.UUID) (*models.Plan, error) {
	return tx.GetPlan(ctx, id)
}

func (l *Ledger) ListPlans(ctx context.Context, tx store.Tx) ([]models.Plan, error) {
	return tx.ListPlans(ctx)
}

// Subscribe supersedes every active subscription of the tenant and starts a
// new one on planID for [start, end). Old rows are never rewritten beyond
// their status.
func (l *Ledger) Subscribe(ctx context.Context, tx store.Tx, tenantID, planID uuid.UUID, start, end time.Time) (*models.Subscription, error) {
	if !start.Before(end) {
		return nil, apperr.Invalid("plan.subscribe", "period start must be before end")
	}
	// The tenant lock serializes plan changes so only one can supersede
	// the current active row.
	if _, err := tx.LockTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if _, err := tx.GetPlan(ctx, planID); err != nil {
		return nil, err
	}

	subs, err := tx.ListSubscriptions(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if s.Status != models.SubscriptionActive {
			continue
		}
		if err := tx.SetSubscriptionStatus(ctx, s.ID, models.SubscriptionSuperseded); err != nil {
			return nil, err
		}
	}

	return tx.CreateSubscription(ctx, models.Subscription{
		TenantID:           tenantID,
		PlanID:             planID,
		Status:             models.SubscriptionActive,
		CurrentPeriodStart: start.UTC(),
		CurrentPeriodEnd:   end.UTC(),
	})
}

// Active returns the subscription covering now, or NotFound.
func (l *Ledger) Active(ctx context.Context, tx store.Tx, tenantID uuid.UUID) (*models.Subscription, error) {
	return tx.ActiveSubscription(ctx, tenantID, l.now())
}

// Limits resolves the limits in force for the tenant. Without a covering
// subscription the configured fallback applies: deny yields zero limits and
// trial yields the configured trial limits.
func (l *Ledger) Limits(ctx context.Context, tx store.Tx, tenantID uuid.UUID) (Limits, error) {
	sub, err := l.Active(ctx, tx, tenantID)
	switch {
	case err == nil:
		p, err := tx.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return Limits{}, err
		}
		return Limits{
			UserLimit:      p.UserLimit,
			StorageLimitGB: p.StorageLimitGB,
			Source:         SourcePlan,
			PlanID:         &p.ID,
		}, nil
	case apperr.KindOf(err) == apperr.KindNotFound:
	default:
		return Limits{}, err
	}

	if l.fallback.Fallback == FallbackTrial {
		return Limits{
			UserLimit:      l.fallback.TrialUserLimit,
			StorageLimitGB: l.fallback.TrialStorageGB,
			Source:         SourceFallbackTrial,
		}, nil
	}
	return Limits{Source: SourceFallbackDeny}, nil
}

// ActiveFeatures returns the feature flags of the tenant's current plan, or
// an empty set when no subscription covers now.
func (l *Ledger) ActiveFeatures(ctx context.Context, tx store.Tx, tenantID uuid.UUID) (Features, error) {
	lim, err := l.Limits(ctx, tx, tenantID)
	if err != nil {
		return Features{}, err
	}
	if lim.PlanID == nil {
		return ParseFeatures(nil)
	}
	p, err := tx.GetPlan(ctx, *lim.PlanID)
	if err != nil {
		return Features{}, err
	}
	return ParseFeatures(p.Features)
}
