package rbac

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

// Anomaly is a user_roles edge pointing at a role scoped to another tenant.
type Anomaly struct {
	UserID       uuid.UUID `json:"user_id"`
	UserTenantID uuid.UUID `json:"user_tenant_id"`
	RoleID       uuid.UUID `json:"role_id"`
	RoleTenantID uuid.UUID `json:"role_tenant_id"`
}

type Resolution struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Permissions Set
	Anomalies   []Anomaly
	// Inactive is set when the tenant is suspended or the user disabled; the
	// permission set is then empty regardless of role edges.
	Inactive string
}

type Decision struct {
	Allowed    bool
	Permission Permission
	Anomalies  []Anomaly
}

// Err converts a denial into a Forbidden error. When the denial coincides with
// ignored cross-tenant edges the IntegrityAnomaly is wrapped inside it.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	err := apperr.Forbidden("rbac.authorize", "missing permission %s", d.Permission)
	if len(d.Anomalies) > 0 {
		err.Err = apperr.IntegrityAnomaly("rbac.authorize", "%d cross-tenant role assignment(s) ignored", len(d.Anomalies))
	}
	return err
}

type Engine struct {
	store  store.Store
	cache  Cache
	logger *slog.Logger

	// bypass is set once an invalidation could not be published; from then
	// on every resolution goes to the store.
	bypass atomic.Bool
}

type Option func(*Engine)

func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{store: s, cache: NoCache{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve computes the user's effective permissions inside tx: the union of
// the permissions of every role the user holds that is scoped to the user's
// tenant or global. Roles of other tenants are skipped and reported.
func (e *Engine) Resolve(ctx context.Context, tx store.Tx, tenantID, userID uuid.UUID) (*Resolution, error) {
	tn, err := tx.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.TenantID != tenantID {
		return nil, apperr.NotFound("rbac.resolve", "user %s not found in tenant %s", userID, tenantID)
	}

	res := &Resolution{TenantID: tenantID, UserID: userID, Permissions: Set{}}
	switch {
	case tn.Status == models.TenantSuspended:
		res.Inactive = "tenant_suspended"
		return res, nil
	case u.Status == models.UserDisabled:
		res.Inactive = "user_disabled"
		return res, nil
	}

	roles, err := tx.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	roleIDs := make([]uuid.UUID, 0, len(roles))
	for _, r := range roles {
		if !r.UsableBy(u.TenantID) {
			a := Anomaly{UserID: u.ID, UserTenantID: u.TenantID, RoleID: r.ID, RoleTenantID: *r.TenantID}
			res.Anomalies = append(res.Anomalies, a)
			e.logger.Warn("cross-tenant role assignment ignored",
				"kind", apperr.KindIntegrityAnomaly,
				"tenant_id", a.UserTenantID,
				"user_id", a.UserID,
				"role_id", a.RoleID,
				"role_tenant_id", a.RoleTenantID,
			)
			continue
		}
		roleIDs = append(roleIDs, r.ID)
	}

	perms, err := tx.PermissionsForRoles(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	for _, ps := range perms {
		for _, p := range ps {
			res.Permissions.Add(p.Name)
		}
	}
	return res, nil
}

// Check answers an authorization question inside tx without consulting the
// cache. Mutating operations use it so the decision and the mutation see the
// same snapshot.
func (e *Engine) Check(ctx context.Context, tx store.Tx, tenantID, userID uuid.UUID, perm Permission) (Decision, error) {
	res, err := e.Resolve(ctx, tx, tenantID, userID)
	if err != nil {
		return Decision{}, err
	}
	return decide(res, perm), nil
}

// Require is Check with the denial folded into the error.
func (e *Engine) Require(ctx context.Context, tx store.Tx, tenantID, userID uuid.UUID, perm Permission) error {
	d, err := e.Check(ctx, tx, tenantID, userID, perm)
	if err != nil {
		return err
	}
	return d.Err()
}

func decide(res *Resolution, perm Permission) Decision {
	return Decision{
		Allowed:    res.Permissions.Has(string(perm)),
		Permission: perm,
		Anomalies:  res.Anomalies,
	}
}

func (e *Engine) EffectivePermissions(ctx context.Context, tenantID, userID uuid.UUID) (Set, error) {
	res, err := e.resolve(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return res.Permissions, nil
}

func (e *Engine) Authorize(ctx context.Context, tenantID, userID uuid.UUID, perm Permission) (Decision, error) {
	res, err := e.resolve(ctx, tenantID, userID)
	if err != nil {
		return Decision{}, err
	}
	return decide(res, perm), nil
}

func (e *Engine) resolve(ctx context.Context, tenantID, userID uuid.UUID) (*Resolution, error) {
	var key CacheKey
	cached := false
	if !e.bypass.Load() {
		gen, err := e.cache.Generations(ctx, tenantID)
		if err == nil {
			cached = true
			key = CacheKey{TenantID: tenantID, UserID: userID, Gen: gen}
			if perms, ok := e.cache.Get(ctx, key); ok {
				return &Resolution{TenantID: tenantID, UserID: userID, Permissions: perms}, nil
			}
		} else {
			e.logger.Warn("permission cache unavailable", "error", err)
		}
	}

	var res *Resolution
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		res, err = e.Resolve(ctx, tx, tenantID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// anomalous resolutions are recomputed every time so they keep being reported
	if cached && len(res.Anomalies) == 0 {
		e.cache.Put(ctx, key, res.Permissions)
	}
	return res, nil
}

// Apply publishes the invalidations collected during a committed transaction.
// It must run after commit. If publishing fails the engine stops trusting its
// cache for the rest of the process lifetime.
func (e *Engine) Apply(ctx context.Context, inv *Invalidation) {
	if inv == nil || inv.Empty() {
		return
	}
	fail := func(err error) {
		e.bypass.Store(true)
		e.logger.Error("permission cache invalidation failed", "error", err, "cause", errCacheDisabled)
	}
	if inv.global {
		if err := e.cache.Invalidate(ctx, nil); err != nil {
			fail(err)
		}
	}
	for id := range inv.tenants {
		if err := e.cache.Invalidate(ctx, &id); err != nil {
			fail(err)
		}
	}
}
