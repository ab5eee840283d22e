package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	natsadapter "github.com/samirrijal/magvar/internal/adapters/nats"
	"github.com/samirrijal/magvar/internal/adapters/postgres"
	"github.com/samirrijal/magvar/internal/adapters/valkey"
	"github.com/samirrijal/magvar/internal/adapters/wmm"
	"github.com/samirrijal/magvar/internal/core/ports"
	"github.com/samirrijal/magvar/internal/core/usecases"
	"github.com/samirrijal/magvar/internal/pkg/config"
	"github.com/samirrijal/magvar/internal/pkg/logging"
	"github.com/samirrijal/magvar/internal/pkg/telemetry"
)

// The realtime worker drains raw instrument frames from JetStream, corrects
// them against the configured model epoch and writes the result back to
// Postgres and the corrected subject.

func main() {
	cfg, err := config.Load("magvar-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

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

	// Cache (optional; declination point lookups reuse it)
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, running uncached", "error", err)
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS: publisher owns the JetStream streams, subscriber consumes raw frames.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()
	slog.Info("nats publisher ready", "connected", pub.Connected())

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	// Model catalog; fail fast when the configured epoch has no coefficients.
	catalog := wmm.NewCatalog(cfg.Model.Dir)
	if _, err := catalog.Resolve(cfg.Model.Epoch); err != nil {
		log.Fatalf("model epoch %d: %v", cfg.Model.Epoch, err)
	}

	// Use cases
	deploymentRepo := postgres.NewDeploymentRepo(db)
	seriesRepo := postgres.NewSeriesRepo(db)
	declSvc := usecases.NewDeclinationService(catalog, cacheSvc, cfg.Model.Epoch, cfg.Model.Workers)
	corrSvc := usecases.NewCorrectionService(declSvc, deploymentRepo, seriesRepo, pub)

	// Metrics + liveness listener
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("metrics listener starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics listener", "error", err)
		}
	}()

	// Start consuming
	if err := sub.SubscribeRawFrames(ctx, corrSvc.ProcessFrame); err != nil {
		log.Fatalf("subscribe raw frames: %v", err)
	}
	slog.Info("realtime corrector started", "model_epoch", cfg.Model.Epoch)

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining subscriptions", "signal", sig.String())
	cancel()
	// Give in-flight frames time to finish before the deferred drains run.
	time.Sleep(2 * time.Second)
}
