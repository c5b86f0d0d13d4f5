package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/tenantguard/internal/admin"
	"github.com/nikhilbhutani/tenantguard/internal/api"
	"github.com/nikhilbhutani/tenantguard/internal/cache"
	"github.com/nikhilbhutani/tenantguard/internal/config"
	"github.com/nikhilbhutani/tenantguard/internal/database"
	"github.com/nikhilbhutani/tenantguard/internal/identity"
	"github.com/nikhilbhutani/tenantguard/internal/plan"
	"github.com/nikhilbhutani/tenantguard/internal/queue"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
	"github.com/nikhilbhutani/tenantguard/internal/store/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	st := postgres.New(db)

	// Redis backs the shared permission cache and the export queue; neither
	// is required.
	var redisCache *cache.Cache
	if cfg.Cache.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, permission cache will miss", "error", err)
		}
		redisCache = cache.NewCache(rdb, "tenantguard")
	}

	engineOpts := []rbac.Option{rbac.WithLogger(logger)}
	switch cfg.Cache.Backend {
	case "lru":
		lru, err := rbac.NewLRUCache(cfg.Cache.Size, cfg.Cache.TTL)
		if err != nil {
			slog.Error("failed to build permission cache", "error", err)
			os.Exit(1)
		}
		engineOpts = append(engineOpts, rbac.WithCache(lru))
	case "redis":
		engineOpts = append(engineOpts, rbac.WithCache(rbac.NewRedisCache(redisCache, cfg.Cache.TTL)))
	}

	deps := admin.Deps{
		Store:    st,
		Engine:   rbac.NewEngine(st, engineOpts...),
		Ledger:   plan.NewLedger(cfg.Quota),
		Identity: identity.New(),
		Logger:   logger,

		SignupPlan: cfg.Signup.Plan,
	}
	if cfg.AuditExport.URL != "" {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		deps.Exporter = qc
	}
	svc := admin.New(deps)

	if err := svc.SeedCatalog(ctx); err != nil {
		slog.Error("failed to seed permission catalog", "error", err)
		os.Exit(1)
	}

	var redisPinger interface{ Ping(context.Context) error }
	if redisCache != nil {
		redisPinger = redisCache
	}
	router := api.NewRouter(cfg, svc, st, redisPinger)
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "perm_cache", cfg.Cache.Backend, "quota_fallback", cfg.Quota.Fallback)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
