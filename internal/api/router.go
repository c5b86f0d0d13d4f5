package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/tenantguard/internal/admin"
	"github.com/nikhilbhutani/tenantguard/internal/api/handlers"
	"github.com/nikhilbhutani/tenantguard/internal/api/middleware"
	"github.com/nikhilbhutani/tenantguard/internal/auth"
	"github.com/nikhilbhutani/tenantguard/internal/config"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	mux   *chi.Mux
	cfg   *config.Config
	svc   *admin.Service
	jwt   *auth.JWTMiddleware
	db    pinger
	redis pinger
	rl    *middleware.RateLimiter
}

// NewRouter wires the HTTP surface. redis may be nil when no Redis-backed
// component is configured.
func NewRouter(cfg *config.Config, svc *admin.Service, db pinger, redis pinger) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		cfg:   cfg,
		svc:   svc,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret, svc),
		db:    db,
		redis: redis,
		rl:    middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
}

// Close releases background resources held by middleware.
func (rt *Router) Close() {
	rt.rl.Close()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(rt.rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	engine := rt.svc.Engine()
	tenantH := handlers.NewTenantHandler(rt.svc, rt.jwt)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/tenants", tenantH.Signup)
		r.Post("/auth/token", tenantH.Login)
		r.Get("/plans", tenantH.ListPlans)

		r.Group(func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)

			authzH := handlers.NewAuthzHandler(rt.svc)
			r.Get("/me/permissions", authzH.MyPermissions)
			r.Post("/authorize", authzH.Authorize)

			quotaH := handlers.NewQuotaHandler(rt.svc)
			r.Get("/quota", quotaH.Usage)
			r.Post("/quota/check", quotaH.Check)
			r.With(engine.RequirePermission(rbac.PermManageStorage)).Post("/storage/reserve", quotaH.ReserveStorage)
			r.With(engine.RequirePermission(rbac.PermManageBilling)).Post("/subscription", quotaH.ChangePlan)

			userH := handlers.NewUserHandler(rt.svc)
			manageUsers := engine.RequirePermission(rbac.PermManageUsers)
			manageRoles := engine.RequirePermission(rbac.PermManageRoles)
			r.Route("/users", func(r chi.Router) {
				r.With(manageUsers).Post("/", userH.Invite)
				r.With(manageUsers).Get("/", userH.List)
				r.With(manageUsers).Post("/{id}/activate", userH.Activate)
				r.With(manageUsers).Post("/{id}/disable", userH.Disable)
				r.With(manageUsers).Delete("/{id}", userH.Delete)
				r.With(manageRoles).Post("/{id}/roles/{roleID}", userH.AssignRole)
				r.With(manageRoles).Delete("/{id}/roles/{roleID}", userH.RevokeRole)
			})

			roleH := handlers.NewRoleHandler(rt.svc)
			r.Get("/permissions", roleH.ListPermissions)
			r.Route("/roles", func(r chi.Router) {
				r.Use(manageRoles)
				r.Post("/", roleH.Create)
				r.Get("/", roleH.List)
				r.Post("/{id}/permissions/{name}", roleH.GrantPermission)
				r.Delete("/{id}/permissions/{name}", roleH.RevokePermission)
			})

			auditH := handlers.NewAuditHandler(rt.svc)
			r.With(engine.RequirePermission(rbac.PermViewAudit)).Get("/audit", auditH.List)

			projectH := handlers.NewProjectHandler(rt.svc)
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectH.List)
				r.Get("/tasks", projectH.ListTasks)
				r.With(engine.RequirePermission(rbac.PermManageProjects)).Post("/", projectH.Create)
				r.With(engine.RequirePermission(rbac.PermManageProjects)).Post("/{id}/tasks", projectH.CreateTask)
			})
		})
	})

	return r
}
