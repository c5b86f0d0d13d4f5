package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/tenantguard/internal/config"
	"github.com/nikhilbhutani/tenantguard/internal/queue"
	"github.com/nikhilbhutani/tenantguard/internal/queue/workers"
	"github.com/nikhilbhutani/tenantguard/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.AuditExport.URL == "" || cfg.AuditExport.Secret == "" {
		slog.Error("AUDIT_EXPORT_URL and AUDIT_EXPORT_SECRET are required for the worker")
		os.Exit(1)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	registry := queue.NewHandlersRegistry()

	exportWorker := workers.NewAuditExportWorker(webhook.NewSender(cfg.AuditExport.URL, cfg.AuditExport.Secret))
	registry.Register(queue.TypeAuditExport, asynq.HandlerFunc(exportWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 4, "export_url", cfg.AuditExport.URL)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
