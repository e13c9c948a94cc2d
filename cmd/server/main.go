package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dirplan/internal/server/api"
	"dirplan/internal/server/config"
	"dirplan/internal/server/database"
	"dirplan/internal/server/service"
	"dirplan/internal/server/storage"
	"dirplan/internal/template"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"template_backend", cfg.TemplateBackend,
		"export_path", cfg.ExportPath,
		"export_ttl", cfg.ExportTTL,
		"materialize_root", cfg.MaterializeRoot,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Template store
	templates, health, closeStore, err := openTemplateStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open template store", "backend", cfg.TemplateBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Initialize export storage
	exports := storage.NewFileSystemStore(cfg.ExportPath)
	if err := exports.EnsureDir(); err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.MaterializeRoot, 0755); err != nil {
		slog.Error("failed to create materialize root", "path", cfg.MaterializeRoot, "error", err)
		os.Exit(1)
	}
	slog.Info("file storage initialized", "path", cfg.ExportPath)

	svc := service.NewStructureService(templates, exports, cfg)

	// Start cleanup service
	cleanup := storage.NewCleanupService(exports, svc, cfg.ExportTTL, cfg.SessionIdle, cfg.CleanupInterval)
	cleanup.Start(ctx)

	// Setup HTTP router
	handler := api.NewHandler(svc, health)
	e := api.SetupRouter(ctx, handler, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop cleanup service
	cancel()
	cleanup.Wait()

	slog.Info("server exited cleanly")
}

// openTemplateStore opens the configured backend. The health checker is nil
// unless templates live in PostgreSQL.
func openTemplateStore(ctx context.Context, cfg *config.Config) (template.Store, api.HealthChecker, func(), error) {
	switch cfg.TemplateBackend {
	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("database migrations complete")
		return database.NewTemplateRepository(db), db, db.Close, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, nil, nil, err
		}
		store, err := template.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		slog.Info("sqlite template store opened", "path", cfg.SQLitePath)
		return store, nil, func() { store.Close() }, nil

	default:
		if err := os.MkdirAll(filepath.Dir(cfg.TemplateFile), 0755); err != nil {
			return nil, nil, nil, err
		}
		slog.Info("file template store opened", "path", cfg.TemplateFile)
		return template.NewFileStore(cfg.TemplateFile), nil, func() {}, nil
	}
}
