package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	natsadapter "github.com/samirrijal/magvar/internal/adapters/nats"
	"github.com/samirrijal/magvar/internal/adapters/postgres"
	"github.com/samirrijal/magvar/internal/adapters/wmm"
	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/pkg/config"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source      string            `json:"source"`
	Deployments []DeploymentEntry `json:"deployments"`
	Models      []ModelEntry      `json:"models,omitempty"`
	Replays     []ReplayEntry     `json:"replays,omitempty"`
}

type DeploymentEntry struct {
	ID               string     `json:"id"`
	PlatformCode     string     `json:"platform_code"`
	InstrumentKind   string     `json:"instrument_kind"`
	Lat              float64    `json:"lat"`
	Lon              float64    `json:"lon"`
	NominalDepthM    float64    `json:"nominal_depth_m"`
	Orientation      string     `json:"orientation,omitempty"`
	CommissionedAt   time.Time  `json:"commissioned_at"`
	DecommissionedAt *time.Time `json:"decommissioned_at,omitempty"`
}

// ModelEntry sideloads a coefficient file for an epoch beyond the embedded set.
type ModelEntry struct {
	Epoch int    `json:"epoch"`
	File  string `json:"file"`
}

// ReplayEntry names a recovered frame file to push back through the pipeline.
type ReplayEntry struct {
	File string `json:"file"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("magvar-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("magvar ingestor — %d deployments from %s", len(manifest.Deployments), manifest.Source)

	baseDir := filepath.Dir(manifestPath)

	if err := ingestDeployments(ctx, db, manifest.Deployments); err != nil {
		log.Fatalf("deployments: %v", err)
	}

	if len(manifest.Models) > 0 {
		sideloadModels(cfg, baseDir, manifest.Models)
	}

	if len(manifest.Replays) > 0 {
		replayFrames(ctx, cfg, baseDir, manifest.Replays)
	}

	log.Println("ingestion complete")
}

// ---------------------------------------------------------------------------
// Deployment catalog
// ---------------------------------------------------------------------------

func ingestDeployments(ctx context.Context, db *postgres.DB, entries []DeploymentEntry) error {
	repo := postgres.NewDeploymentRepo(db)

	const batchSize = 500
	batch := make([]domain.Deployment, 0, batchSize)
	total := 0
	skipped := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := repo.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, e := range entries {
		d, err := deploymentFromEntry(e)
		if err != nil {
			log.Printf("  skipping %s: %v", e.ID, err)
			skipped++
			continue
		}

		batch = append(batch, *d)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Printf("  deployments: %d upserted, %d skipped", total, skipped)
	return nil
}

func deploymentFromEntry(e DeploymentEntry) (*domain.Deployment, error) {
	if e.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	if e.Lat < -90 || e.Lat > 90 || e.Lon < -180 || e.Lon > 360 {
		return nil, fmt.Errorf("site %.4f, %.4f out of range", e.Lat, e.Lon)
	}
	if e.CommissionedAt.IsZero() {
		return nil, fmt.Errorf("missing commissioned_at")
	}

	orientation := domain.BelowSeaLevel
	if e.Orientation != "" {
		var err error
		if orientation, err = domain.ParseOrientation(e.Orientation); err != nil {
			return nil, err
		}
	}

	return &domain.Deployment{
		ID:               e.ID,
		PlatformCode:     e.PlatformCode,
		InstrumentKind:   e.InstrumentKind,
		Site:             domain.GeoPoint{Lat: e.Lat, Lon: e.Lon},
		NominalDepthM:    e.NominalDepthM,
		Orientation:      orientation,
		CommissionedAt:   e.CommissionedAt.UTC(),
		DecommissionedAt: e.DecommissionedAt,
	}, nil
}

// ---------------------------------------------------------------------------
// Coefficient sideloads
// ---------------------------------------------------------------------------

// sideloadModels copies manifest COF files into the model directory under
// their canonical name, then parses each one to catch corrupt uploads before
// a worker trips over them.
func sideloadModels(cfg *config.Config, baseDir string, models []ModelEntry) {
	if cfg.Model.Dir == "" {
		log.Printf("  model.dir not set, skipping %d coefficient sideloads", len(models))
		return
	}
	if err := os.MkdirAll(cfg.Model.Dir, 0o755); err != nil {
		log.Printf("  model dir: %v", err)
		return
	}

	catalog := wmm.NewCatalog(cfg.Model.Dir)
	for _, m := range models {
		src := m.File
		if !filepath.IsAbs(src) {
			src = filepath.Join(baseDir, src)
		}

		data, err := os.ReadFile(src)
		if err != nil {
			log.Printf("  model %d: %v", m.Epoch, err)
			continue
		}

		dst := filepath.Join(cfg.Model.Dir, fmt.Sprintf("WMM%d.COF", m.Epoch))
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			log.Printf("  model %d: %v", m.Epoch, err)
			continue
		}

		if _, err := catalog.Load(m.Epoch); err != nil {
			log.Printf("  model %d: %v, removing", m.Epoch, err)
			_ = os.Remove(dst)
			continue
		}
		log.Printf("  model %d: sideloaded", m.Epoch)
	}
}

// ---------------------------------------------------------------------------
// Frame replay
// ---------------------------------------------------------------------------

// frameFile is the on-disk form of a recovered transmission. Arrays use null
// for missing samples, which the pipeline carries as NaN.
type frameFile struct {
	DeploymentID string     `json:"deployment_id"`
	Times        []*float64 `json:"times"`
	Lats         []*float64 `json:"lats"`
	Lons         []*float64 `json:"lons"`
	Depths       []*float64 `json:"depths"`
	East         []*float64 `json:"east"`
	North        []*float64 `json:"north"`
}

// replayFrames pushes recovered frame files back onto the raw subject so the
// realtime worker corrects them like live traffic.
func replayFrames(ctx context.Context, cfg *config.Config, baseDir string, replays []ReplayEntry) {
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Printf("  replay: nats unavailable: %v", err)
		return
	}
	defer pub.Close()

	published := 0
	for _, r := range replays {
		path := r.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("  replay %s: %v", r.File, err)
			continue
		}

		var ff frameFile
		if err := json.Unmarshal(data, &ff); err != nil {
			log.Printf("  replay %s: %v", r.File, err)
			continue
		}

		f := &domain.ObservationFrame{
			DeploymentID: ff.DeploymentID,
			Times:        floats(ff.Times),
			Lats:         floats(ff.Lats),
			Lons:         floats(ff.Lons),
			Depths:       floats(ff.Depths),
			East:         floats(ff.East),
			North:        floats(ff.North),
		}
		if err := f.Validate(); err != nil {
			log.Printf("  replay %s: %v", r.File, err)
			continue
		}

		if err := pub.PublishRawFrame(ctx, f); err != nil {
			log.Printf("  replay %s: %v", r.File, err)
			continue
		}
		published++
		log.Printf("  replay %s: %d samples for %s", r.File, len(f.Times), f.DeploymentID)
	}

	log.Printf("  replays: %d frames published", published)
}

// floats converts a nullable JSON array, mapping null to NaN.
func floats(ps []*float64) []float64 {
	vs := make([]float64, len(ps))
	for i, p := range ps {
		if p == nil {
			vs[i] = math.NaN()
		} else {
			vs[i] = *p
		}
	}
	return vs
}
