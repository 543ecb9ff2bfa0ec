package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/homzhub/ticket-engine/internal/api"
	"github.com/homzhub/ticket-engine/internal/attachments"
	"github.com/homzhub/ticket-engine/internal/catalog"
	"github.com/homzhub/ticket-engine/internal/cleanup"
	"github.com/homzhub/ticket-engine/internal/config"
	"github.com/homzhub/ticket-engine/internal/events"
	"github.com/homzhub/ticket-engine/internal/lease"
	"github.com/homzhub/ticket-engine/internal/quote"
	"github.com/homzhub/ticket-engine/internal/session"
	"github.com/homzhub/ticket-engine/internal/storage"
	"github.com/homzhub/ticket-engine/internal/ticket"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load .env if present, then configuration from environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting ticket-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Run database migrations on the repository's pool
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := repo.Migrate(initCtx, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize quote session store
	sessions, err := session.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Session.TTL)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.Info("redis connected successfully")

	// Load the service-category catalog
	cat := catalog.NewCatalog()
	if err := cat.LoadFromDir(cfg.Catalog.Dir); err != nil {
		slog.Warn("failed to load catalog from dir", "dir", cfg.Catalog.Dir, "error", err)
	}

	// Initialize the document staging area and attachment service client
	staging, err := attachments.NewStaging(cfg.Staging.Dir)
	if err != nil {
		slog.Error("failed to create staging area", "error", err)
		os.Exit(1)
	}
	uploader := attachments.NewClient(
		cfg.Attachments.BaseURL,
		cfg.Attachments.APIKey,
		attachments.WithTimeout(cfg.Attachments.Timeout),
	)

	// Event hub for websocket broadcast
	hub := events.NewHub(logger)

	// Domain services
	tickets := ticket.NewService(repo, cat, hub, logger)
	quotes := quote.NewWorkflow(sessions, repo, uploader, staging, cat, hub, cfg.Session.TTL, logger)
	leases := lease.NewService(repo, logger)

	// Initialize cleanup worker for abandoned staged documents
	cleaner := cleanup.NewCleaner(staging, cfg.Cleanup.Interval, cfg.Cleanup.Retention)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, cfg.Auth, tickets, quotes, leases, cat, repo, hub)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := sessions.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("ticket-engine stopped")
}
