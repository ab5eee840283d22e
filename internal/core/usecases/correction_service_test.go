package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/core/usecases"
	"github.com/samirrijal/magvar/internal/pkg/ntptime"
)

// --- Mock DeploymentRepository ---

type mockDeploymentRepo struct {
	getByIDFn     func(ctx context.Context, id string) (*domain.Deployment, error)
	listFn        func(ctx context.Context, limit, offset int) ([]domain.Deployment, int, error)
	findNearestFn func(ctx context.Context, lat, lon float64, limit int) ([]domain.Deployment, error)
}

func (m *mockDeploymentRepo) Upsert(ctx context.Context, d *domain.Deployment) error { return nil }
func (m *mockDeploymentRepo) UpsertBatch(ctx context.Context, ds []domain.Deployment) error {
	return nil
}

func (m *mockDeploymentRepo) GetByID(ctx context.Context, id string) (*domain.Deployment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &domain.Deployment{ID: id}, nil
}

func (m *mockDeploymentRepo) List(ctx context.Context, limit, offset int) ([]domain.Deployment, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockDeploymentRepo) FindNearest(ctx context.Context, lat, lon float64, limit int) ([]domain.Deployment, error) {
	if m.findNearestFn != nil {
		return m.findNearestFn(ctx, lat, lon, limit)
	}
	return nil, nil
}

// --- Mock CorrectedSeriesRepository ---

type mockSeriesRepo struct {
	inserted    []domain.CorrectedVector
	windowFn    func(ctx context.Context, deploymentID string, from, to time.Time) ([]domain.CorrectedVector, error)
	latestFn    func(ctx context.Context, deploymentID string, limit int) ([]domain.CorrectedVector, error)
	updated     []domain.CorrectedVector
	insertErr   error
	updateCount int64
}

func (m *mockSeriesRepo) InsertBatch(ctx context.Context, vs []domain.CorrectedVector) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, vs...)
	return nil
}

func (m *mockSeriesRepo) Window(ctx context.Context, deploymentID string, from, to time.Time) ([]domain.CorrectedVector, error) {
	if m.windowFn != nil {
		return m.windowFn(ctx, deploymentID, from, to)
	}
	return nil, nil
}

func (m *mockSeriesRepo) Latest(ctx context.Context, deploymentID string, limit int) ([]domain.CorrectedVector, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, deploymentID, limit)
	}
	return nil, nil
}

func (m *mockSeriesRepo) UpdateCorrections(ctx context.Context, vs []domain.CorrectedVector) (int64, error) {
	m.updated = append(m.updated, vs...)
	if m.updateCount != 0 {
		return m.updateCount, nil
	}
	return int64(len(vs)), nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	corrected []domain.CorrectedVector
	summaries []*domain.ReprocessSummary
}

func (m *mockPublisher) PublishCorrected(ctx context.Context, vs []domain.CorrectedVector) error {
	m.corrected = append(m.corrected, vs...)
	return nil
}

func (m *mockPublisher) PublishReprocessSummary(ctx context.Context, s *domain.ReprocessSummary) error {
	m.summaries = append(m.summaries, s)
	return nil
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error { return nil }

// declService builds a DeclinationService whose model always returns decl.
func declService(decl float64) *usecases.DeclinationService {
	catalog := &mockCatalog{model: &mockModel{
		declFn: func(lat, lon, altKM float64, date time.Time) float64 { return decl },
	}}
	return usecases.NewDeclinationService(catalog, nil, 2010, 1)
}

// --- Tests ---

func TestCorrectionService_ProcessFrame(t *testing.T) {
	deployments := &mockDeploymentRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Deployment, error) {
			return &domain.Deployment{ID: id, Orientation: domain.BelowSeaLevel}, nil
		},
	}
	series := &mockSeriesRepo{}
	publisher := &mockPublisher{}

	// A 90 degree declination swaps the components: east' = north,
	// north' = -east.
	svc := usecases.NewCorrectionService(declService(90), deployments, series, publisher)

	ts := ntptime.FromTime(time.Date(2013, time.April, 15, 6, 29, 0, 0, time.UTC))
	frame := &domain.ObservationFrame{
		DeploymentID: "CE02SHSM",
		Times:        []float64{ts, ts + 1},
		Lats:         []float64{44.64, 44.64},
		Lons:         []float64{-124.31, -124.31},
		Depths:       []float64{7},
		East:         []float64{1, 0.5},
		North:        []float64{2, -0.5},
	}

	if err := svc.ProcessFrame(context.Background(), frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(series.inserted) != 2 {
		t.Fatalf("expected 2 rows inserted, got %d", len(series.inserted))
	}

	row := series.inserted[0]
	if math.Abs(row.EastTrue-2) > 1e-12 || math.Abs(row.NorthTrue-(-1)) > 1e-12 {
		t.Errorf("rotated components = (%f, %f), want (2, -1)", row.EastTrue, row.NorthTrue)
	}
	if row.East != 1 || row.North != 2 {
		t.Errorf("raw components not preserved: (%f, %f)", row.East, row.North)
	}
	if row.DeclinationDeg != 90 {
		t.Errorf("declination = %f, want 90", row.DeclinationDeg)
	}
	if row.DepthM != 7 {
		t.Errorf("scalar depth not broadcast: %f", row.DepthM)
	}
	if row.ModelEpoch != 2010 {
		t.Errorf("model epoch = %d, want 2010", row.ModelEpoch)
	}
	if want := time.Date(2013, time.April, 15, 6, 29, 0, 0, time.UTC); !row.Time.Equal(want) {
		t.Errorf("row time = %v, want %v", row.Time, want)
	}

	if len(publisher.corrected) != 2 {
		t.Errorf("expected 2 samples broadcast, got %d", len(publisher.corrected))
	}
}

func TestCorrectionService_ProcessFrame_DropsNaNClock(t *testing.T) {
	series := &mockSeriesRepo{}
	svc := usecases.NewCorrectionService(declService(0), &mockDeploymentRepo{}, series, &mockPublisher{})

	ts := ntptime.FromTime(time.Date(2013, time.April, 15, 0, 0, 0, 0, time.UTC))
	frame := &domain.ObservationFrame{
		DeploymentID: "GP03FLMA",
		Times:        []float64{ts, math.NaN(), ts + 2},
		Lats:         []float64{50, 50, 50},
		Lons:         []float64{-145, -145, -145},
		Depths:       []float64{30},
		East:         []float64{1, 2, 3},
		North:        []float64{0, 0, 0},
	}

	if err := svc.ProcessFrame(context.Background(), frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series.inserted) != 2 {
		t.Fatalf("expected NaN-clock sample dropped, got %d rows", len(series.inserted))
	}
	if series.inserted[0].East != 1 || series.inserted[1].East != 3 {
		t.Errorf("wrong samples kept: %f, %f", series.inserted[0].East, series.inserted[1].East)
	}
}

func TestCorrectionService_ProcessFrame_UnknownDeployment(t *testing.T) {
	deployments := &mockDeploymentRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Deployment, error) {
			return nil, domain.ErrDeploymentNotFound
		},
	}
	svc := usecases.NewCorrectionService(declService(0), deployments, &mockSeriesRepo{}, &mockPublisher{})

	frame := &domain.ObservationFrame{
		DeploymentID: "nope",
		Times:        []float64{0},
		Lats:         []float64{0},
		Lons:         []float64{0},
		Depths:       []float64{0},
		East:         []float64{0},
		North:        []float64{0},
	}
	if err := svc.ProcessFrame(context.Background(), frame); !errors.Is(err, domain.ErrDeploymentNotFound) {
		t.Errorf("want ErrDeploymentNotFound, got %v", err)
	}
}

func TestCorrectionService_ProcessFrame_ShapeMismatch(t *testing.T) {
	svc := usecases.NewCorrectionService(declService(0), &mockDeploymentRepo{}, &mockSeriesRepo{}, &mockPublisher{})

	frame := &domain.ObservationFrame{
		DeploymentID: "CE02SHSM",
		Times:        []float64{0, 1},
		Lats:         []float64{0, 0},
		Lons:         []float64{0, 0},
		Depths:       []float64{0},
		East:         []float64{0},
		North:        []float64{0, 0},
	}
	if err := svc.ProcessFrame(context.Background(), frame); !errors.Is(err, domain.ErrShapeMismatch) {
		t.Errorf("want ErrShapeMismatch, got %v", err)
	}
}

func TestCorrectionService_ProcessFrame_EmptyFrame(t *testing.T) {
	series := &mockSeriesRepo{}
	svc := usecases.NewCorrectionService(declService(0), &mockDeploymentRepo{}, series, &mockPublisher{})

	if err := svc.ProcessFrame(context.Background(), &domain.ObservationFrame{DeploymentID: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series.inserted) != 0 {
		t.Errorf("expected no rows for empty frame, got %d", len(series.inserted))
	}
}

func TestCorrectionService_RecorrectWindow(t *testing.T) {
	from := time.Date(2013, time.April, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2013, time.May, 1, 0, 0, 0, 0, time.UTC)

	stored := []domain.CorrectedVector{
		{
			Time: from.Add(time.Hour), DeploymentID: "CE02SHSM",
			Lat: 44.64, Lon: -124.31, DepthM: 7,
			East: 1, North: 0, EastTrue: 0.9, NorthTrue: 0.1,
			DeclinationDeg: 5, ModelEpoch: 2005,
		},
		{
			Time: from.Add(2 * time.Hour), DeploymentID: "CE02SHSM",
			Lat: 44.64, Lon: -124.31, DepthM: 7,
			East: 0, North: 1, EastTrue: 0.1, NorthTrue: 0.9,
			DeclinationDeg: 5, ModelEpoch: 2005,
		},
	}

	series := &mockSeriesRepo{
		windowFn: func(ctx context.Context, id string, f, u time.Time) ([]domain.CorrectedVector, error) {
			if id != "CE02SHSM" || !f.Equal(from) || !u.Equal(to) {
				t.Errorf("window queried with %s [%v, %v]", id, f, u)
			}
			return stored, nil
		},
	}
	publisher := &mockPublisher{}

	svc := usecases.NewCorrectionService(declService(90), &mockDeploymentRepo{}, series, publisher)

	summary, err := svc.RecorrectWindow(context.Background(), "CE02SHSM", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Samples != 2 {
		t.Errorf("summary samples = %d, want 2", summary.Samples)
	}
	if summary.ModelEpoch != 2010 {
		t.Errorf("summary epoch = %d, want 2010", summary.ModelEpoch)
	}
	if summary.FinishedAt.Before(summary.StartedAt) {
		t.Errorf("finished %v before started %v", summary.FinishedAt, summary.StartedAt)
	}

	if len(series.updated) != 2 {
		t.Fatalf("expected 2 rows updated, got %d", len(series.updated))
	}
	// Rotation by 90 degrees: (1,0) -> (0,-1) and (0,1) -> (1,0).
	u0, u1 := series.updated[0], series.updated[1]
	if math.Abs(u0.EastTrue) > 1e-12 || math.Abs(u0.NorthTrue+1) > 1e-12 {
		t.Errorf("row 0 recorrected to (%f, %f), want (0, -1)", u0.EastTrue, u0.NorthTrue)
	}
	if math.Abs(u1.EastTrue-1) > 1e-12 || math.Abs(u1.NorthTrue) > 1e-12 {
		t.Errorf("row 1 recorrected to (%f, %f), want (1, 0)", u1.EastTrue, u1.NorthTrue)
	}
	if u0.ModelEpoch != 2010 {
		t.Errorf("row epoch not bumped: %d", u0.ModelEpoch)
	}

	if len(publisher.summaries) != 1 {
		t.Errorf("expected 1 summary published, got %d", len(publisher.summaries))
	}
}

func TestCorrectionService_RecorrectWindow_EmptyWindow(t *testing.T) {
	series := &mockSeriesRepo{}
	publisher := &mockPublisher{}
	svc := usecases.NewCorrectionService(declService(0), &mockDeploymentRepo{}, series, publisher)

	from := time.Date(2013, time.April, 1, 0, 0, 0, 0, time.UTC)
	summary, err := svc.RecorrectWindow(context.Background(), "CE02SHSM", from, from.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Samples != 0 {
		t.Errorf("summary samples = %d, want 0", summary.Samples)
	}
	if len(series.updated) != 0 {
		t.Errorf("update issued for empty window")
	}
	if len(publisher.summaries) != 0 {
		t.Errorf("summary published for empty window")
	}
}
