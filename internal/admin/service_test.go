package admin

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/audit"
	"github.com/nikhilbhutani/tenantguard/internal/config"
	"github.com/nikhilbhutani/tenantguard/internal/identity"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/plan"
	"github.com/nikhilbhutani/tenantguard/internal/quota"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
	"github.com/nikhilbhutani/tenantguard/internal/store"
	"github.com/nikhilbhutani/tenantguard/internal/store/memory"
)

const password = "correct horse battery"

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeExporter struct {
	mu      sync.Mutex
	batches [][]models.AuditLog
}

func (f *fakeExporter) ExportAudit(_ context.Context, records []models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	return nil
}

type harness struct {
	svc      *Service
	store    *memory.Store
	exporter *fakeExporter
	plan     *models.Plan
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithSignupPlan(t, "duo")
}

func newHarnessWithSignupPlan(t *testing.T, signupPlan string) *harness {
	t.Helper()
	ctx := context.Background()
	s, err := memory.New()
	require.NoError(t, err)
	cache, err := rbac.NewLRUCache(256, time.Minute)
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	exp := &fakeExporter{}
	svc := New(Deps{
		Store:    s,
		Engine:   rbac.NewEngine(s, rbac.WithCache(cache), rbac.WithLogger(logger)),
		Ledger:   plan.NewLedger(config.QuotaConfig{Fallback: plan.FallbackDeny}).WithClock(func() time.Time { return now }),
		Identity: identity.New().WithCost(bcrypt.MinCost),
		Exporter: exp,
		Logger:   logger,

		SignupPlan: signupPlan,
	})
	require.NoError(t, svc.SeedCatalog(ctx))

	p, err := svc.CreatePlan(ctx, models.Plan{Name: "duo", Price: 10, UserLimit: 2, StorageLimitGB: 10})
	require.NoError(t, err)
	return &harness{svc: svc, store: s, exporter: exp, plan: p}
}

func (h *harness) signup(t *testing.T, name string) (*SignupResult, Actor) {
	t.Helper()
	res, err := h.svc.SignupTenant(context.Background(), SignupRequest{
		TenantName:    name,
		AdminEmail:    "admin@" + name + ".io",
		AdminPassword: password,
	})
	require.NoError(t, err)
	return res, Actor{TenantID: res.Tenant.ID, UserID: res.Admin.ID}
}

func (h *harness) auditCount(t *testing.T, tenantID uuid.UUID, action audit.Action) int {
	t.Helper()
	n := 0
	require.NoError(t, h.store.View(context.Background(), func(tx store.Tx) error {
		logs, err := tx.ListAudit(context.Background(), tenantID, store.AuditFilter{Action: string(action), Limit: 1000})
		n = len(logs)
		return err
	}))
	return n
}

func TestSignupCreatesAdministrator(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	assert.Equal(t, models.TenantActive, res.Tenant.Status)
	assert.Equal(t, models.UserActive, res.Admin.Status)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, h.plan.ID, res.Subscription.PlanID)

	perms, err := h.svc.Permissions(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, perms, len(rbac.DefaultCatalog))

	assert.Equal(t, 1, h.auditCount(t, res.Tenant.ID, audit.TenantCreated))
	assert.Equal(t, 1, h.auditCount(t, res.Tenant.ID, audit.PlanSubscribed))
}

func TestSignupWithoutPlanHitsDenyFallback(t *testing.T) {
	h := newHarnessWithSignupPlan(t, "")
	_, err := h.svc.SignupTenant(context.Background(), SignupRequest{
		TenantName: "acme", AdminEmail: "admin@acme.io", AdminPassword: password,
	})
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)

	tenants := 0
	require.NoError(t, h.store.View(context.Background(), func(tx store.Tx) error {
		ts, err := tx.ListTenants(context.Background())
		tenants = len(ts)
		return err
	}))
	assert.Zero(t, tenants)
}

func TestSignupWithUnknownPlanFails(t *testing.T) {
	h := newHarnessWithSignupPlan(t, "platinum")
	_, err := h.svc.SignupTenant(context.Background(), SignupRequest{
		TenantName: "acme", AdminEmail: "admin@acme.io", AdminPassword: password,
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, h.store.View(context.Background(), func(tx store.Tx) error {
		ts, err := tx.ListTenants(context.Background())
		assert.Empty(t, ts)
		return err
	}))
}

// Plan changes on one tenant are serialized; however they interleave exactly
// one subscription stays active.
func TestConcurrentPlanChanges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	var plans []*models.Plan
	for _, name := range []string{"basic", "pro", "team"} {
		p, err := h.svc.CreatePlan(ctx, models.Plan{Name: name, UserLimit: 5, StorageLimitGB: 5})
		require.NoError(t, err)
		plans = append(plans, p)
	}

	var wg sync.WaitGroup
	for _, p := range plans {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := h.svc.ChangePlan(ctx, admin, id, time.Time{}, time.Time{})
			assert.NoError(t, err)
		}(p.ID)
	}
	wg.Wait()

	require.NoError(t, h.store.View(ctx, func(tx store.Tx) error {
		subs, err := tx.ListSubscriptions(ctx, res.Tenant.ID)
		require.NoError(t, err)
		assert.Len(t, subs, len(plans)+1)
		active := 0
		for _, sub := range subs {
			if sub.Status == models.SubscriptionActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
		return nil
	}))
	assert.Equal(t, len(plans)+1, h.auditCount(t, res.Tenant.ID, audit.PlanSubscribed))
}

// A plan with user_limit 2 admits the admin and one invitee; the third seat
// fails and leaves neither a user row nor an audit row behind.
func TestInviteBeyondUserLimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	_, err := h.svc.InviteUser(ctx, admin, "u2@acme.io", password)
	require.NoError(t, err)

	_, err = h.svc.InviteUser(ctx, admin, "u3@acme.io", password)
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)

	users, err := h.svc.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 1, h.auditCount(t, res.Tenant.ID, audit.UserInvited))
}

func TestForbiddenLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	u, err := h.svc.InviteUser(ctx, admin, "u2@acme.io", password)
	require.NoError(t, err)
	_, err = h.svc.ActivateUser(ctx, admin, u.ID)
	require.NoError(t, err)

	member := Actor{TenantID: res.Tenant.ID, UserID: u.ID}
	_, err = h.svc.CreateRole(ctx, member, "sneaky")
	require.ErrorIs(t, err, apperr.ErrForbidden)
	// only the admin role created at signup
	assert.Equal(t, 1, h.auditCount(t, res.Tenant.ID, audit.RoleCreated))

	_, err = h.svc.ListAudit(ctx, member, audit.Query{})
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, adminA := h.signup(t, "acme")
	_, adminB := h.signup(t, "globex")

	// B's admin cannot touch A's users or roles, and cannot even see them
	err := h.svc.AssignRole(ctx, adminB, a.Admin.ID, a.Role.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	u, err := h.svc.InviteUser(ctx, adminB, "x@globex.io", password)
	require.NoError(t, err)
	err = h.svc.AssignRole(ctx, adminB, u.ID, a.Role.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	err = h.svc.GrantPermission(ctx, adminB, a.Role.ID, string(rbac.PermViewAudit))
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = h.svc.Authorize(ctx, adminB, a.Admin.ID, rbac.PermManageUsers)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	logs, err := h.svc.ListAudit(ctx, adminA, audit.Query{})
	require.NoError(t, err)
	for _, l := range logs {
		assert.Equal(t, a.Tenant.ID, l.TenantID)
	}
}

func TestGrantRequiresHeldPermission(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	roleAdmin, err := h.svc.CreateRole(ctx, admin, "role-admins")
	require.NoError(t, err)
	require.NoError(t, h.svc.GrantPermission(ctx, admin, roleAdmin.ID, string(rbac.PermManageRoles)))

	u, err := h.svc.InviteUser(ctx, admin, "ra@acme.io", password)
	require.NoError(t, err)
	require.NoError(t, h.svc.AssignRole(ctx, admin, u.ID, roleAdmin.ID))
	ra := Actor{TenantID: res.Tenant.ID, UserID: u.ID}

	err = h.svc.GrantPermission(ctx, ra, roleAdmin.ID, string(rbac.PermManageBilling))
	require.ErrorIs(t, err, apperr.ErrForbidden)

	err = h.svc.GrantPermission(ctx, admin, roleAdmin.ID, "launch_rockets")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRevocationIsImmediate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	auditors, err := h.svc.CreateRole(ctx, admin, "auditors")
	require.NoError(t, err)
	require.NoError(t, h.svc.GrantPermission(ctx, admin, auditors.ID, string(rbac.PermViewAudit)))
	u, err := h.svc.InviteUser(ctx, admin, "aud@acme.io", password)
	require.NoError(t, err)
	require.NoError(t, h.svc.AssignRole(ctx, admin, u.ID, auditors.ID))
	auditor := Actor{TenantID: res.Tenant.ID, UserID: u.ID}

	d, err := h.svc.Authorize(ctx, auditor, uuid.Nil, rbac.PermViewAudit)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	require.NoError(t, h.svc.RevokePermission(ctx, admin, auditors.ID, string(rbac.PermViewAudit)))
	d, err = h.svc.Authorize(ctx, auditor, uuid.Nil, rbac.PermViewAudit)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	require.NoError(t, h.svc.GrantPermission(ctx, admin, auditors.ID, string(rbac.PermViewAudit)))
	require.NoError(t, h.svc.RevokeRole(ctx, admin, u.ID, auditors.ID))
	d, err = h.svc.Authorize(ctx, auditor, uuid.Nil, rbac.PermViewAudit)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestGlobalRolesAreOperatorManaged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, admin := h.signup(t, "acme")

	support, err := h.svc.CreateGlobalRole(ctx, "support", rbac.PermViewAudit)
	require.NoError(t, err)

	err = h.svc.GrantPermission(ctx, admin, support.ID, string(rbac.PermManageUsers))
	require.ErrorIs(t, err, apperr.ErrForbidden)

	u, err := h.svc.InviteUser(ctx, admin, "s@acme.io", password)
	require.NoError(t, err)
	require.NoError(t, h.svc.AssignRole(ctx, admin, u.ID, support.ID))
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	// the admin authored audit records and cannot be deleted
	err := h.svc.DeleteUser(ctx, admin, admin.UserID)
	require.ErrorIs(t, err, apperr.ErrConflict)

	u, err := h.svc.InviteUser(ctx, admin, "u2@acme.io", password)
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteUser(ctx, admin, u.ID))
	assert.Equal(t, 1, h.auditCount(t, res.Tenant.ID, audit.UserDeleted))

	// the freed seat can be reused
	_, err = h.svc.InviteUser(ctx, admin, "u3@acme.io", password)
	require.NoError(t, err)
}

func TestDisableFreesSeatAndAccess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	u, err := h.svc.InviteUser(ctx, admin, "u2@acme.io", password)
	require.NoError(t, err)
	require.NoError(t, h.svc.AssignRole(ctx, admin, u.ID, res.Role.ID))
	member := Actor{TenantID: res.Tenant.ID, UserID: u.ID}

	perms, err := h.svc.Permissions(ctx, member)
	require.NoError(t, err)
	require.NotEmpty(t, perms)

	_, err = h.svc.DisableUser(ctx, admin, u.ID)
	require.NoError(t, err)
	perms, err = h.svc.Permissions(ctx, member)
	require.NoError(t, err)
	assert.Empty(t, perms)

	_, err = h.svc.InviteUser(ctx, admin, "u3@acme.io", password)
	require.NoError(t, err)
}

func TestStorageReservation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	_, err := h.svc.ReserveStorage(ctx, admin, 8)
	require.NoError(t, err)
	_, err = h.svc.ReserveStorage(ctx, admin, 3)
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)

	r, err := h.svc.CheckQuota(ctx, admin, quota.StorageGB, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, r.Current)

	_, err = h.svc.ReserveStorage(ctx, admin, -5)
	require.NoError(t, err)

	u, err := h.svc.Usage(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, u.StorageGB)
	assert.Equal(t, 1, u.Users)
	assert.Equal(t, 1, h.auditCount(t, res.Tenant.ID, audit.StorageReserved))
	assert.Equal(t, 1, h.auditCount(t, res.Tenant.ID, audit.StorageReleased))
}

func TestChangePlanRaisesLimits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, admin := h.signup(t, "acme")

	big, err := h.svc.CreatePlan(ctx, models.Plan{Name: "team", Price: 99, UserLimit: 10, StorageLimitGB: 100})
	require.NoError(t, err)
	_, err = h.svc.ChangePlan(ctx, admin, big.ID, time.Time{}, time.Time{})
	require.NoError(t, err)

	u, err := h.svc.Usage(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 10, u.Limits.UserLimit)
	assert.Equal(t, big.ID, *u.Limits.PlanID)
}

func TestSuspendedTenantLosesAccess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	_, err := h.svc.SetTenantStatus(ctx, res.Tenant.ID, models.TenantSuspended, &admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.auditCount(t, res.Tenant.ID, audit.TenantStatusChanged))

	_, err = h.svc.InviteUser(ctx, admin, "u2@acme.io", password)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = h.svc.SetTenantStatus(ctx, res.Tenant.ID, models.TenantTrial, nil)
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = h.svc.SetTenantStatus(ctx, res.Tenant.ID, models.TenantActive, nil)
	require.NoError(t, err)
	_, err = h.svc.InviteUser(ctx, admin, "u2@acme.io", password)
	require.NoError(t, err)
}

func TestDeleteTenantCascades(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, adminA := h.signup(t, "acme")
	b, adminB := h.signup(t, "globex")

	p, err := h.svc.CreateProject(ctx, adminA, "launch")
	require.NoError(t, err)
	_, err = h.svc.CreateTask(ctx, adminA, p.ID, "write docs", &adminA.UserID)
	require.NoError(t, err)
	_, err = h.svc.CreateProject(ctx, adminB, "other")
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteTenant(ctx, a.Tenant.ID))

	require.NoError(t, h.store.View(ctx, func(tx store.Tx) error {
		_, err := tx.GetTenant(ctx, a.Tenant.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = tx.GetUser(ctx, a.Admin.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = tx.GetRole(ctx, a.Role.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		projects, err := tx.ListProjects(ctx, a.Tenant.ID)
		assert.NoError(t, err)
		assert.Empty(t, projects)
		logs, err := tx.ListAudit(ctx, a.Tenant.ID, store.AuditFilter{})
		assert.NoError(t, err)
		assert.Empty(t, logs)

		_, err = tx.GetUser(ctx, b.Admin.ID)
		assert.NoError(t, err)
		projects, err = tx.ListProjects(ctx, b.Tenant.ID)
		assert.NoError(t, err)
		assert.Len(t, projects, 1)
		return nil
	}))
}

func TestCreateTaskStaysInTenant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, adminA := h.signup(t, "acme")
	_, adminB := h.signup(t, "globex")

	p, err := h.svc.CreateProject(ctx, adminA, "launch")
	require.NoError(t, err)

	_, err = h.svc.CreateTask(ctx, adminB, p.ID, "steal", nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = h.svc.CreateTask(ctx, adminA, p.ID, "assign across", &adminB.UserID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancelledOperationRollsBack(t *testing.T) {
	h := newHarness(t)
	res, admin := h.signup(t, "acme")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.svc.InviteUser(ctx, admin, "u2@acme.io", password)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.auditCount(t, res.Tenant.ID, audit.UserInvited))
}

func TestExportOnlyAfterCommit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, admin := h.signup(t, "acme")
	before := len(h.exporter.batches)

	_, err := h.svc.InviteUser(ctx, admin, "u2@acme.io", password)
	require.NoError(t, err)
	require.Len(t, h.exporter.batches, before+1)
	last := h.exporter.batches[len(h.exporter.batches)-1]
	require.Len(t, last, 1)
	assert.Equal(t, string(audit.UserInvited), last[0].Action)

	_, err = h.svc.InviteUser(ctx, admin, "u3@acme.io", password)
	require.Error(t, err)
	assert.Len(t, h.exporter.batches, before+1)
}

func TestOperationsRequireActor(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.InviteUser(context.Background(), Actor{}, "u@acme.io", password)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}
