package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/magvar/internal/adapters/nats"
	"github.com/samirrijal/magvar/internal/adapters/postgres"
	temporaladapter "github.com/samirrijal/magvar/internal/adapters/temporal"
	"github.com/samirrijal/magvar/internal/adapters/valkey"
	"github.com/samirrijal/magvar/internal/adapters/wmm"
	"github.com/samirrijal/magvar/internal/core/ports"
	"github.com/samirrijal/magvar/internal/core/usecases"
	"github.com/samirrijal/magvar/internal/pkg/config"
	"github.com/samirrijal/magvar/internal/pkg/logging"
	"github.com/samirrijal/magvar/internal/workflows"
)

// The compensator runs reprocess workflows: when a coefficient epoch or
// deployment record changes, stored windows are re-corrected here rather
// than in the request path.

func main() {
	cfg, err := config.Load("magvar-compensator")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx := context.Background()

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache (optional)
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, running uncached", "error", err)
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS publisher for slice progress and run summaries
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	// Model catalog
	catalog := wmm.NewCatalog(cfg.Model.Dir)
	if _, err := catalog.Resolve(cfg.Model.Epoch); err != nil {
		log.Fatalf("model epoch %d: %v", cfg.Model.Epoch, err)
	}

	// Use cases behind the activities
	deploymentRepo := postgres.NewDeploymentRepo(db)
	seriesRepo := postgres.NewSeriesRepo(db)
	declSvc := usecases.NewDeclinationService(catalog, cacheSvc, cfg.Model.Epoch, cfg.Model.Workers)
	corrSvc := usecases.NewCorrectionService(declSvc, deploymentRepo, seriesRepo, pub)

	// Connect to Temporal
	c, err := temporaladapter.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.ReprocessDeploymentWorkflow)
	w.RegisterActivity(&workflows.ReprocessActivities{
		Corrections: corrSvc,
		Deployments: deploymentRepo,
		Publisher:   pub,
	})

	slog.Info("compensator worker started",
		"task_queue", cfg.Temporal.TaskQueue, "model_epoch", cfg.Model.Epoch)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
