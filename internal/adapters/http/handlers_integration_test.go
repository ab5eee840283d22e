//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samirrijal/magvar/internal/adapters/http"
	"github.com/samirrijal/magvar/internal/adapters/postgres"
	"github.com/samirrijal/magvar/internal/adapters/wmm"
	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/core/usecases"
	"github.com/samirrijal/magvar/internal/pkg/config"
)

// setupTestDB connects to the test database and returns a clean DB instance.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("magvar-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	dsn := cfg.Database.DSN()
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	db := &postgres.DB{Pool: pool}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return db
}

// setupTestDeps creates dependencies with a real DB and repos, no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *http.Dependencies {
	deploymentRepo := postgres.NewDeploymentRepo(db)
	seriesRepo := postgres.NewSeriesRepo(db)
	catalog := wmm.NewCatalog("")

	return &http.Dependencies{
		Declination: usecases.NewDeclinationService(catalog, nil, 2010, 4),
		Deployments: usecases.NewDeploymentService(deploymentRepo, seriesRepo, nil, nil),
		DB:          db,
	}
}

// seedTestDeployment inserts a deployment and returns its reference designator.
func seedTestDeployment(t *testing.T, db *postgres.DB, id string, lat, lon float64) string {
	ctx := context.Background()
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO deployments (id, platform_code, instrument_kind, lat, lon, nominal_depth_m, orientation, commissioned_at)
		VALUES ($1, $2, 'ADCP', $3, $4, 25, 'below_sea_level', '2013-01-01T00:00:00Z')
		ON CONFLICT (id) DO UPDATE SET lat = EXCLUDED.lat, lon = EXCLUDED.lon
	`, id, "TEST-"+id, lat, lon); err != nil {
		t.Fatalf("seed deployment: %v", err)
	}
	return id
}

// seedTestVector inserts one corrected sample for a deployment.
func seedTestVector(t *testing.T, db *postgres.DB, deploymentID string, ts time.Time) {
	ctx := context.Background()
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO corrected_series (deployment_id, time, lat, lon, depth_m, east, north, east_true, north_true, declination_deg, model_epoch)
		VALUES ($1, $2, 44.64, -124.3, 25, 0.1, 0.2, 0.15, 0.17, 16.0, 2010)
		ON CONFLICT (deployment_id, time) DO NOTHING
	`, deploymentID, ts); err != nil {
		t.Fatalf("seed vector: %v", err)
	}
}

// TestListDeployments_Integration_WithRealDB tests the catalog listing against a real database.
func TestListDeployments_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	seedTestDeployment(t, db, "TEST02SHSM", 44.64, -124.3)
	seedTestDeployment(t, db, "TEST04OSSM", 44.37, -124.95)

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/deployments", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Deployment `json:"data"`
		Pagination struct{ Total int } `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if result.Pagination.Total < 2 {
		t.Errorf("expected at least 2 deployments, got %d", result.Pagination.Total)
	}
}

// TestGetDeployment_Integration tests a single lookup against a real database.
func TestGetDeployment_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	id := "TESTINTEG" + time.Now().Format("150405")
	seedTestDeployment(t, db, id, 44.64, -124.3)

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/deployments/"+id, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var d domain.Deployment
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if d.ID != id {
		t.Errorf("expected id %s, got %s", id, d.ID)
	}
}

// TestNearestDeployments_Integration tests the geospatial query against a real database.
func TestNearestDeployments_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	// Oregon shelf coordinates: 44.64, -124.3
	seedTestDeployment(t, db, "TESTNEAR01", 44.64, -124.3)

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/deployments/nearest?lat=44.6&lon=-124.3&limit=5", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var ds []domain.Deployment
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(ds) == 0 {
		t.Error("expected at least 1 nearby deployment, got 0")
	}
}

// TestSeriesRoundTrip_Integration stores a vector and reads it back over HTTP.
func TestSeriesRoundTrip_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	id := seedTestDeployment(t, db, "TESTSERIES", 44.64, -124.3)
	ts := time.Date(2013, 4, 15, 12, 0, 0, 0, time.UTC)
	seedTestVector(t, db, id, ts)

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/deployments/"+id+"/series?from=2013-04-15T00:00:00Z&to=2013-04-16T00:00:00Z", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var vectors []domain.CorrectedVector
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if !vectors[0].Time.Equal(ts) {
		t.Errorf("expected time %v, got %v", ts, vectors[0].Time)
	}
}
