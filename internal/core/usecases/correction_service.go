package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/core/ports"
	"github.com/samirrijal/magvar/internal/pkg/ntptime"
)

// CorrectionService turns raw instrument frames into true-north-referenced
// velocity series.
type CorrectionService struct {
	decl        *DeclinationService
	deployments ports.DeploymentRepository
	series      ports.CorrectedSeriesRepository
	publisher   ports.EventPublisher
}

// NewCorrectionService creates a new CorrectionService.
func NewCorrectionService(
	decl *DeclinationService,
	deployments ports.DeploymentRepository,
	series ports.CorrectedSeriesRepository,
	publisher ports.EventPublisher,
) *CorrectionService {
	return &CorrectionService{
		decl:        decl,
		deployments: deployments,
		series:      series,
		publisher:   publisher,
	}
}

// ProcessFrame corrects one raw transmission and persists the result. The
// deployment record supplies the depth orientation. Samples whose clock
// reads NaN have no usable row key and are dropped.
func (s *CorrectionService) ProcessFrame(ctx context.Context, f *domain.ObservationFrame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if len(f.Times) == 0 {
		return nil
	}

	dep, err := s.deployments.GetByID(ctx, f.DeploymentID)
	if err != nil {
		return fmt.Errorf("deployment %s: %w", f.DeploymentID, err)
	}

	batch := f.Batch(dep.Orientation)
	decl, err := s.decl.Evaluate(ctx, batch)
	if err != nil {
		return fmt.Errorf("evaluate declination: %w", err)
	}

	east, north, err := domain.RotateVectors(decl, f.East, f.North)
	if err != nil {
		return err
	}

	epoch := s.decl.EpochYear()
	vs := make([]domain.CorrectedVector, 0, len(f.Times))
	for i := range f.Times {
		t, err := ntptime.Time(f.Times[i])
		if err != nil {
			continue
		}
		vs = append(vs, domain.CorrectedVector{
			Time:           t,
			DeploymentID:   f.DeploymentID,
			Lat:            f.Lats[i],
			Lon:            f.Lons[i],
			DepthM:         batch.DepthAt(i),
			East:           f.East[i],
			North:          f.North[i],
			EastTrue:       east[i],
			NorthTrue:      north[i],
			DeclinationDeg: decl[i],
			ModelEpoch:     epoch,
		})
	}
	if len(vs) == 0 {
		return nil
	}

	if err := s.series.InsertBatch(ctx, vs); err != nil {
		return fmt.Errorf("insert corrected batch: %w", err)
	}

	// Broadcast to WebSocket clients (best-effort).
	_ = s.publisher.PublishCorrected(ctx, vs)

	return nil
}

// RecorrectWindow re-evaluates declination for the stored samples of a
// deployment window and updates their corrected components in place. It is
// the unit of work behind a reprocess run.
func (s *CorrectionService) RecorrectWindow(ctx context.Context, deploymentID string, from, to time.Time) (*domain.ReprocessSummary, error) {
	started := time.Now().UTC()

	dep, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("deployment %s: %w", deploymentID, err)
	}

	rows, err := s.series.Window(ctx, deploymentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}

	summary := &domain.ReprocessSummary{
		DeploymentID: deploymentID,
		From:         from,
		To:           to,
		ModelEpoch:   s.decl.EpochYear(),
		StartedAt:    started,
	}
	if len(rows) == 0 {
		summary.FinishedAt = time.Now().UTC()
		return summary, nil
	}

	b := domain.ObservationBatch{
		Lats:        make([]float64, len(rows)),
		Lons:        make([]float64, len(rows)),
		Times:       make([]float64, len(rows)),
		Depths:      make([]float64, len(rows)),
		Orientation: dep.Orientation,
	}
	east := make([]float64, len(rows))
	north := make([]float64, len(rows))
	for i, r := range rows {
		b.Lats[i], b.Lons[i] = r.Lat, r.Lon
		b.Times[i] = ntptime.FromTime(r.Time)
		b.Depths[i] = r.DepthM
		east[i], north[i] = r.East, r.North
	}

	decl, err := s.decl.Evaluate(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("evaluate declination: %w", err)
	}
	eastTrue, northTrue, err := domain.RotateVectors(decl, east, north)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i].EastTrue = eastTrue[i]
		rows[i].NorthTrue = northTrue[i]
		rows[i].DeclinationDeg = decl[i]
		rows[i].ModelEpoch = summary.ModelEpoch
	}

	updated, err := s.series.UpdateCorrections(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("update corrections: %w", err)
	}
	summary.Samples = int(updated)
	summary.FinishedAt = time.Now().UTC()

	_ = s.publisher.PublishReprocessSummary(ctx, summary)

	return summary, nil
}
