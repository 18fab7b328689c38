package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expertdir/apps/recommender/internal/app"
	"expertdir/apps/recommender/internal/config"
	"expertdir/apps/recommender/internal/lock"
	"expertdir/apps/recommender/internal/logger"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("recommender exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 2. One recommender per index on this host
	release, err := lock.Acquire(cfg.LockPath, time.Duration(cfg.LockTimeoutSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("acquiring instance lock: %w", err)
	}
	defer func() {
		if err := release(); err != nil {
			log.Warn("failed to release instance lock", "error", err)
		}
	}()

	// 3. Infrastructure
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	// 4. Application
	application, err := app.New(cfg, deps)
	if err != nil {
		_ = deps.Close()
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	if err := application.Initialize(ctx); err != nil {
		return err
	}
	log.Info("recommender ready")

	// 5. Start Server
	return application.Run(ctx)
}
