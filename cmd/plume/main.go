package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/plumeworks/plume/api"
	"github.com/plumeworks/plume/internal/config"
	"github.com/plumeworks/plume/internal/install"
	"github.com/plumeworks/plume/internal/ratelimit"
	"github.com/plumeworks/plume/internal/server"
	"github.com/plumeworks/plume/internal/telemetry"
	"github.com/plumeworks/plume/ui"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("PLUME_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, requestShutdown context.CancelFunc, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	env, err := config.LoadEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("plume starting", "version", version, "port", env.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, env.OTELEndpoint, env.ServiceName, version, true)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// The installation document may not exist yet; the wizard creates it.
	cfgMgr := config.NewManager(env.ConfigPath, logger)
	if _, err := cfgMgr.Load(); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			logger.Info("no installation document yet, serving install wizard",
				"path", env.ConfigPath)
		} else {
			logger.Warn("installation document invalid, serving install wizard",
				"path", env.ConfigPath, "error", err)
		}
	}

	// One process-scoped install coordinator; the restart trigger wires to
	// the same cancel that a SIGTERM would hit, so both exit paths share
	// graceful shutdown.
	svc := install.NewService(install.Options{
		Config:   cfgMgr,
		DataDir:  env.DataDir,
		Logger:   logger,
		Shutdown: requestShutdown,
	})
	defer svc.Close()

	// Sustained 1 req/s per IP with a burst of 10 covers a human clicking
	// through the wizard while shutting down credential stuffing.
	limiter := ratelimit.NewMemoryLimiter(1, 10)
	defer limiter.Close()

	// Embedded wizard frontend; nil unless built with the ui tag.
	uiFS, err := ui.DistFS()
	if err != nil {
		return fmt.Errorf("ui filesystem: %w", err)
	}

	srv := server.New(server.Config{
		Install:      svc,
		Logger:       logger,
		Port:         env.Port,
		ReadTimeout:  env.ReadTimeout,
		WriteTimeout: env.WriteTimeout,
		Version:      version,
		Limiter:      limiter,
		UIFS:         uiFS,
		OpenAPISpec:  api.OpenAPISpec,
	})

	// Reap stale distributed lock records left by crashed instances.
	go lockReapLoop(ctx, svc)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("plume shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	return nil
}

// lockReapLoop periodically removes expired install lock records. Cheap,
// and a no-op until the store is configured.
func lockReapLoop(ctx context.Context, svc *install.Service) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.CleanupExpiredLocks(ctx)
		}
	}
}
