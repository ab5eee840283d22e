package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/core/ports"
	"github.com/samirrijal/magvar/internal/pkg/geospatial"
)

// DeploymentService handles deployment catalog queries.
type DeploymentService struct {
	deployments ports.DeploymentRepository
	series      ports.CorrectedSeriesRepository
	launcher    ports.ReprocessLauncher
	cache       ports.CacheService
}

// NewDeploymentService creates a new DeploymentService.
func NewDeploymentService(
	deployments ports.DeploymentRepository,
	series ports.CorrectedSeriesRepository,
	launcher ports.ReprocessLauncher,
	cache ports.CacheService,
) *DeploymentService {
	return &DeploymentService{
		deployments: deployments,
		series:      series,
		launcher:    launcher,
		cache:       cache,
	}
}

// deploymentPage pairs a page of deployments with the total count for
// pagination headers.
type deploymentPage struct {
	Items []domain.Deployment `json:"items"`
	Total int                 `json:"total"`
}

// List returns a page of deployments plus the total count.
func (s *DeploymentService) List(ctx context.Context, limit, offset int) ([]domain.Deployment, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// Try cache
	cacheKey := fmt.Sprintf("deployments:list:%d:%d", limit, offset)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var page deploymentPage
			if err := json.Unmarshal(data, &page); err == nil {
				return page.Items, page.Total, nil
			}
		}
	}

	items, total, err := s.deployments.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	// Cache for a minute; the catalog only changes on ingest.
	if s.cache != nil {
		if data, err := json.Marshal(deploymentPage{Items: items, Total: total}); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}

	return items, total, nil
}

// GetByID returns a single deployment.
func (s *DeploymentService) GetByID(ctx context.Context, id string) (*domain.Deployment, error) {
	cacheKey := "deployments:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var d domain.Deployment
			if err := json.Unmarshal(data, &d); err == nil {
				return &d, nil
			}
		}
	}

	d, err := s.deployments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(d); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return d, nil
}

// Nearest returns the deployments closest to a point with their distance
// filled in. The repository orders candidates by a planar approximation;
// distances are refined to great-circle metres here.
func (s *DeploymentService) Nearest(ctx context.Context, lat, lon float64, limit int) ([]domain.Deployment, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}

	ds, err := s.deployments.FindNearest(ctx, lat, lon, limit)
	if err != nil {
		return nil, err
	}

	for i := range ds {
		d := geospatial.Haversine(lat, lon, ds[i].Site.Lat, ds[i].Site.Lon)
		ds[i].Distance = &d
	}
	sort.Slice(ds, func(i, j int) bool { return *ds[i].Distance < *ds[j].Distance })

	return ds, nil
}

// Series returns corrected samples for a deployment. A zero from/to window
// means the most recent samples; otherwise the window is inclusive.
func (s *DeploymentService) Series(ctx context.Context, id string, from, to time.Time, limit int) ([]domain.CorrectedVector, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if from.IsZero() && to.IsZero() {
		return s.series.Latest(ctx, id, limit)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("window end must be after start")
	}
	return s.series.Window(ctx, id, from, to)
}

// Reprocess starts an asynchronous re-correction run over a deployment
// window and returns its run ID.
func (s *DeploymentService) Reprocess(ctx context.Context, id string, from, to time.Time) (string, error) {
	if s.launcher == nil {
		return "", fmt.Errorf("reprocess launcher not configured")
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return "", err
	}
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return "", fmt.Errorf("window end must be after start")
	}
	return s.launcher.LaunchReprocess(ctx, id, from, to)
}
