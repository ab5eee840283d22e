package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/magvar/internal/adapters/http"
	natsadapter "github.com/samirrijal/magvar/internal/adapters/nats"
	"github.com/samirrijal/magvar/internal/adapters/postgres"
	temporaladapter "github.com/samirrijal/magvar/internal/adapters/temporal"
	"github.com/samirrijal/magvar/internal/adapters/valkey"
	"github.com/samirrijal/magvar/internal/adapters/wmm"
	"github.com/samirrijal/magvar/internal/core/ports"
	"github.com/samirrijal/magvar/internal/core/usecases"
	"github.com/samirrijal/magvar/internal/pkg/config"
	"github.com/samirrijal/magvar/internal/pkg/logging"
	"github.com/samirrijal/magvar/internal/pkg/metrics"
	"github.com/samirrijal/magvar/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("magvar-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, running uncached", "error", err)
		cache = nil
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS connection for the WebSocket relay and readiness probe
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	}

	// Temporal client for reprocess runs
	var launcher ports.ReprocessLauncher
	tc, err := temporaladapter.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
	if err != nil {
		slog.Warn("temporal unavailable, reprocess disabled", "error", err)
	} else {
		launcher = temporaladapter.NewLauncher(tc, cfg.Temporal.TaskQueue)
		defer tc.Close()
	}

	// Geomagnetic model catalog
	catalog := wmm.NewCatalog(cfg.Model.Dir)
	if _, err := catalog.Resolve(cfg.Model.Epoch); err != nil {
		log.Fatalf("model epoch %d: %v", cfg.Model.Epoch, err)
	}

	// Repos
	deploymentRepo := postgres.NewDeploymentRepo(db)
	seriesRepo := postgres.NewSeriesRepo(db)

	// Use cases
	declSvc := usecases.NewDeclinationService(catalog, cacheSvc, cfg.Model.Epoch, cfg.Model.Workers)
	deploymentSvc := usecases.NewDeploymentService(deploymentRepo, seriesRepo, launcher, cacheSvc)

	deps := &http.Dependencies{
		Declination: declSvc,
		Deployments: deploymentSvc,
		NATS:        natsConn,
		DB:          db,
		Cache:       cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    16 * 1024 * 1024, // batch payloads carry full sample arrays
		AppName:      "magvar API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Keep pool gauges current while the server runs.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "model_epoch", cfg.Model.Epoch)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
