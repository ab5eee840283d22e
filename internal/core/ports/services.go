package ports

import (
	"context"
	"time"

	"github.com/samirrijal/magvar/internal/core/domain"
)

// GeomagneticModel yields declination for a position, altitude and date.
// Implementations are immutable after construction and safe to share across
// batch workers. altKM is kilometres relative to sea level, negative below.
type GeomagneticModel interface {
	Declination(latDeg, lonDeg, altKM float64, date time.Time) float64
	Epoch() float64
	Name() string
}

// ModelCatalog resolves sample years to shared geomagnetic models. Resolve
// must be idempotent: repeated calls for the same epoch return one instance.
type ModelCatalog interface {
	Resolve(year int) (GeomagneticModel, error)
}

// EventPublisher publishes pipeline events to a message broker.
type EventPublisher interface {
	PublishCorrected(ctx context.Context, vs []domain.CorrectedVector) error
	PublishReprocessSummary(ctx context.Context, s *domain.ReprocessSummary) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber subscribes to raw instrument frames from a message broker.
type EventSubscriber interface {
	SubscribeRawFrames(ctx context.Context, handler func(ctx context.Context, f *domain.ObservationFrame) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ReprocessLauncher starts an asynchronous re-correction run for a
// deployment window and returns its run ID.
type ReprocessLauncher interface {
	LaunchReprocess(ctx context.Context, deploymentID string, from, to time.Time) (string, error)
}
