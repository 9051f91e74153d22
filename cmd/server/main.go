package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rentfold/esign/internal/api"
	"github.com/rentfold/esign/internal/dedup"
	"github.com/rentfold/esign/internal/orchestrator"
	"github.com/rentfold/esign/internal/store"
	"github.com/rentfold/esign/pkg/audit"
	"github.com/rentfold/esign/pkg/auth"
	"github.com/rentfold/esign/pkg/config"
	"github.com/rentfold/esign/pkg/db"
	"github.com/rentfold/esign/pkg/provider"
)

func main() {
	cfg := config.Load()

	level := slog.LevelInfo
	if strings.EqualFold(cfg.LogLevel, "DEBUG") {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var envStore store.Store
	if cfg.DatabaseURL == "memory" {
		envStore = store.NewMemory()
		log.Warn("using in-memory envelope store; state is lost on restart")
	} else {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		envStore = store.NewPostgres(pool)
	}

	var dedupStore dedup.Store
	if cfg.RedisAddr != "" {
		r := dedup.NewRedis(cfg.RedisAddr)
		defer func() { _ = r.Close() }()
		dedupStore = r
	} else {
		dedupStore = dedup.NewMemory()
	}

	var auditLog audit.Logger
	sqliteAudit, err := audit.OpenSQLiteStore(cfg.AuditDBPath)
	if err != nil {
		log.Error("audit store unavailable, falling back to stdout", "error", err)
		auditLog = audit.NewLogger()
	} else {
		defer func() { _ = sqliteAudit.Close() }()
		auditLog = sqliteAudit
	}

	profiles, err := config.LoadProviderProfiles(cfg.ProvidersFile)
	if err != nil {
		log.Error("provider profiles failed to load", "error", err)
		os.Exit(1)
	}
	registry := provider.NewRegistry(profiles)

	orc := orchestrator.New(envStore, registry, auditLog, dedupStore,
		orchestrator.WithLogger(log))
	go orc.RunSweeper(ctx, cfg.SweepInterval)

	validator := auth.NewValidator([]byte(cfg.JWTSecret))
	if validator == nil {
		log.Warn("JWT_SECRET is not set; all authenticated routes will reject")
	}

	handler := api.NewHandler(orc, validator)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler.Router()}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Info("esign service listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
