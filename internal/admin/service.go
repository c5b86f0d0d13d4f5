// Package admin composes the directory, ledger, identity, graph, quota and
// audit components into the operations exposed over HTTP. Each operation
// authorizes the actor, checks quota, mutates and audits inside a single
// transaction; any failure or cancellation rolls all of it back.
package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/audit"
	"github.com/nikhilbhutani/tenantguard/internal/identity"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/plan"
	"github.com/nikhilbhutani/tenantguard/internal/quota"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
	"github.com/nikhilbhutani/tenantguard/internal/store"
	"github.com/nikhilbhutani/tenantguard/internal/tenant"
)

// Actor is the authenticated user an operation runs on behalf of.
type Actor struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// Exporter receives audit records after their transaction committed.
type Exporter interface {
	ExportAudit(ctx context.Context, records []models.AuditLog) error
}

type Deps struct {
	Store    store.Store
	Engine   *rbac.Engine
	Ledger   *plan.Ledger
	Identity *identity.Store
	Exporter Exporter
	Logger   *slog.Logger
	// SignupPlan names the plan new tenants are subscribed to. Empty leaves
	// them on the quota fallback until ChangePlan.
	SignupPlan string
}

type Service struct {
	store    store.Store
	tenants  *tenant.Directory
	ledger   *plan.Ledger
	users    *identity.Store
	graph    *rbac.Graph
	engine   *rbac.Engine
	quota    *quota.Enforcer
	audit    *audit.Recorder
	exporter Exporter
	logger   *slog.Logger

	signupPlan string
}

func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	users := d.Identity
	if users == nil {
		users = identity.New()
	}
	return &Service{
		store:    d.Store,
		tenants:  tenant.NewDirectory(),
		ledger:   d.Ledger,
		users:    users,
		graph:    rbac.NewGraph(logger),
		engine:   d.Engine,
		quota:    quota.NewEnforcer(d.Ledger),
		audit:    audit.NewRecorder(),
		exporter: d.Exporter,
		logger:   logger,

		signupPlan: d.SignupPlan,
	}
}

func (s *Service) Engine() *rbac.Engine { return s.engine }

// op is the per-transaction state of one operation. It is rebuilt for every
// call of the transaction body.
type op struct {
	ctx     context.Context
	tx      store.Tx
	actor   Actor
	inv     rbac.Invalidation
	records []models.AuditLog
	s       *Service
}

func (o *op) record(action audit.Action, details any) error {
	rec, err := o.s.audit.Record(o.ctx, o.tx, audit.Entry{
		TenantID: o.actor.TenantID,
		UserID:   o.actor.UserID,
		Action:   action,
		Details:  details,
	})
	if err != nil {
		return fmt.Errorf("record %s: %w", action, err)
	}
	o.records = append(o.records, *rec)
	return nil
}

// run executes fn in one write transaction after checking that the actor
// holds perm. An empty perm skips the check for operator calls. Cache
// invalidation and audit export happen only once the transaction committed.
func (s *Service) run(ctx context.Context, name string, actor Actor, perm rbac.Permission, fn func(o *op) error) error {
	var o *op
	err := s.store.Update(ctx, func(tx store.Tx) error {
		o = &op{ctx: ctx, tx: tx, actor: actor, s: s}
		if perm != "" {
			if err := actor.valid(); err != nil {
				return err
			}
			if err := s.engine.Require(ctx, tx, actor.TenantID, actor.UserID, perm); err != nil {
				return err
			}
		}
		return fn(o)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	after := context.WithoutCancel(ctx)
	s.engine.Apply(after, &o.inv)
	s.export(after, o.records)
	return nil
}

// view runs a read-only operation after checking perm.
func (s *Service) view(ctx context.Context, name string, actor Actor, perm rbac.Permission, fn func(tx store.Tx) error) error {
	err := s.store.View(ctx, func(tx store.Tx) error {
		if perm != "" {
			if err := actor.valid(); err != nil {
				return err
			}
			if err := s.engine.Require(ctx, tx, actor.TenantID, actor.UserID, perm); err != nil {
				return err
			}
		}
		return fn(tx)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (s *Service) export(ctx context.Context, records []models.AuditLog) {
	if s.exporter == nil || len(records) == 0 {
		return
	}
	if err := s.exporter.ExportAudit(ctx, records); err != nil {
		s.logger.Warn("audit export enqueue failed", "error", err, "count", len(records))
	}
}
