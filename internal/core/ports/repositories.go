package ports

import (
	"context"
	"time"

	"github.com/samirrijal/magvar/internal/core/domain"
)

// DeploymentRepository persists instrument deployments.
type DeploymentRepository interface {
	Upsert(ctx context.Context, d *domain.Deployment) error
	UpsertBatch(ctx context.Context, ds []domain.Deployment) error
	GetByID(ctx context.Context, id string) (*domain.Deployment, error)
	List(ctx context.Context, limit, offset int) ([]domain.Deployment, int, error)
	FindNearest(ctx context.Context, lat, lon float64, limit int) ([]domain.Deployment, error)
}

// CorrectedSeriesRepository persists corrected velocity samples. Rows keep
// the raw components alongside the corrected ones so a window can be
// re-corrected in place when a model epoch changes.
type CorrectedSeriesRepository interface {
	InsertBatch(ctx context.Context, vs []domain.CorrectedVector) error
	Window(ctx context.Context, deploymentID string, from, to time.Time) ([]domain.CorrectedVector, error)
	Latest(ctx context.Context, deploymentID string, limit int) ([]domain.CorrectedVector, error)
	UpdateCorrections(ctx context.Context, vs []domain.CorrectedVector) (int64, error)
}
