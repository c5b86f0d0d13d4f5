package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/audit"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/quota"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

const AdminRoleName = "admin"

// DefaultPeriod is the billing period used when a subscription is started
// without an explicit end.
const DefaultPeriod = 30 * 24 * time.Hour

// SignupRequest is accepted from unauthenticated callers, so it carries no
// plan; the operator-configured signup plan applies instead.
type SignupRequest struct {
	TenantName    string `json:"tenant_name"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}

type SignupResult struct {
	Tenant       *models.Tenant       `json:"tenant"`
	Admin        *models.User         `json:"admin"`
	Role         *models.Role         `json:"role"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// SignupTenant creates a tenant with its first administrator. The admin gets
// a tenant-scoped "admin" role holding the whole catalog. With a signup plan
// configured the tenant is subscribed to it and activated; otherwise it stays
// in trial and the seat must fit the fallback limits.
func (s *Service) SignupTenant(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	res := &SignupResult{}
	err := s.run(ctx, "signup tenant", Actor{}, "", func(o *op) error {
		tx := o.tx
		t, err := s.tenants.Create(ctx, tx, req.TenantName)
		if err != nil {
			return err
		}
		o.actor.TenantID = t.ID

		if s.signupPlan != "" {
			p, err := s.ledger.PlanByName(ctx, tx, s.signupPlan)
			if err != nil {
				return fmt.Errorf("signup plan: %w", err)
			}
			now := s.ledger.Now()
			res.Subscription, err = s.ledger.Subscribe(ctx, tx, t.ID, p.ID, now, now.Add(DefaultPeriod))
			if err != nil {
				return err
			}
			if t, _, err = s.tenants.SetStatus(ctx, tx, t.ID, models.TenantActive); err != nil {
				return err
			}
		}
		res.Tenant = t

		if _, err := s.quota.CheckAndReserve(ctx, tx, t.ID, quota.UserCount, 1); err != nil {
			return err
		}
		admin, err := s.users.CreateActive(ctx, tx, t.ID, req.AdminEmail, req.AdminPassword)
		if err != nil {
			return err
		}
		res.Admin = admin
		o.actor.UserID = admin.ID

		role, err := s.graph.CreateRole(ctx, tx, &t.ID, AdminRoleName)
		if err != nil {
			return err
		}
		res.Role = role
		perms, err := tx.ListPermissions(ctx)
		if err != nil {
			return err
		}
		for _, p := range perms {
			if _, err := s.graph.GrantPermission(ctx, tx, &o.inv, role, p.Name); err != nil {
				return err
			}
		}
		if _, err := s.graph.AssignRole(ctx, tx, &o.inv, admin, role.ID); err != nil {
			return err
		}

		if err := o.record(audit.TenantCreated, map[string]any{"name": t.Name, "admin_email": admin.Email}); err != nil {
			return err
		}
		if res.Subscription != nil {
			if err := o.record(audit.PlanSubscribed, subscriptionDetails(res.Subscription)); err != nil {
				return err
			}
		}
		if err := o.record(audit.RoleCreated, map[string]any{"role_id": role.ID, "name": role.Name}); err != nil {
			return err
		}
		return o.record(audit.RoleGranted, map[string]any{"user_id": admin.ID, "role_id": role.ID})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ChangePlan supersedes the active subscription with one on planID. A zero
// start means now; a zero end means start plus DefaultPeriod.
func (s *Service) ChangePlan(ctx context.Context, actor Actor, planID uuid.UUID, start, end time.Time) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.run(ctx, "change plan", actor, rbac.PermManageBilling, func(o *op) error {
		if start.IsZero() {
			start = s.ledger.Now()
		}
		if end.IsZero() {
			end = start.Add(DefaultPeriod)
		}
		var err error
		sub, err = s.ledger.Subscribe(ctx, o.tx, actor.TenantID, planID, start, end)
		if err != nil {
			return err
		}
		return o.record(audit.PlanSubscribed, subscriptionDetails(sub))
	})
	return sub, err
}

func subscriptionDetails(sub *models.Subscription) map[string]any {
	return map[string]any{
		"subscription_id": sub.ID,
		"plan_id":         sub.PlanID,
		"period_start":    sub.CurrentPeriodStart,
		"period_end":      sub.CurrentPeriodEnd,
	}
}

// SetTenantStatus is an operator action. The change is audited when an
// acting user of the tenant is named; audit rows always need a user.
func (s *Service) SetTenantStatus(ctx context.Context, tenantID uuid.UUID, next models.TenantStatus, actingUser *uuid.UUID) (*models.Tenant, error) {
	var t *models.Tenant
	err := s.run(ctx, "set tenant status", Actor{TenantID: tenantID}, "", func(o *op) error {
		var (
			prev models.TenantStatus
			err  error
		)
		t, prev, err = s.tenants.SetStatus(ctx, o.tx, tenantID, next)
		if err != nil {
			return err
		}
		if prev == next {
			return nil
		}
		o.inv.Tenant(tenantID)

		if actingUser == nil {
			s.logger.Info("tenant status changed", "tenant_id", tenantID, "from", prev, "to", next)
			return nil
		}
		if _, err := s.users.Get(ctx, o.tx, tenantID, *actingUser); err != nil {
			return err
		}
		o.actor.UserID = *actingUser
		return o.record(audit.TenantStatusChanged, map[string]any{"from": prev, "to": next})
	})
	return t, err
}

// DeleteTenant is an operator action. Every tenant-owned row, its audit
// trail included, is removed by cascade.
func (s *Service) DeleteTenant(ctx context.Context, tenantID uuid.UUID) error {
	err := s.run(ctx, "delete tenant", Actor{TenantID: tenantID}, "", func(o *op) error {
		if err := s.tenants.Delete(ctx, o.tx, tenantID); err != nil {
			return err
		}
		o.inv.Tenant(tenantID)
		return nil
	})
	if err == nil {
		s.logger.Info("tenant deleted", "tenant_id", tenantID)
	}
	return err
}

// CreatePlan is an operator action.
func (s *Service) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	var out *models.Plan
	err := s.run(ctx, "create plan", Actor{}, "", func(o *op) error {
		var err error
		out, err = s.ledger.CreatePlan(ctx, o.tx, p)
		return err
	})
	return out, err
}

func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var out []models.Plan
	err := s.view(ctx, "list plans", Actor{}, "", func(tx store.Tx) error {
		var err error
		out, err = s.ledger.ListPlans(ctx, tx)
		return err
	})
	return out, err
}

// SeedCatalog installs the permission catalog. It is idempotent.
func (s *Service) SeedCatalog(ctx context.Context) error {
	return s.run(ctx, "seed catalog", Actor{}, "", func(o *op) error {
		_, err := s.graph.SeedCatalog(ctx, o.tx, rbac.DefaultCatalog)
		if err != nil {
			return fmt.Errorf("seed permissions: %w", err)
		}
		return nil
	})
}

// CreateGlobalRole is an operator action creating a role usable in every
// tenant.
func (s *Service) CreateGlobalRole(ctx context.Context, name string, perms ...rbac.Permission) (*models.Role, error) {
	var role *models.Role
	err := s.run(ctx, "create global role", Actor{}, "", func(o *op) error {
		var err error
		if role, err = s.graph.CreateRole(ctx, o.tx, nil, name); err != nil {
			return err
		}
		for _, p := range perms {
			if _, err := s.graph.GrantPermission(ctx, o.tx, &o.inv, role, string(p)); err != nil {
				return err
			}
		}
		return nil
	})
	return role, err
}

var errNoActor = apperr.Forbidden("admin", "operation requires an authenticated user")

func (a Actor) valid() error {
	if a.TenantID == uuid.Nil || a.UserID == uuid.Nil {
		return errNoActor
	}
	return nil
}
