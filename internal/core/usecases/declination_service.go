package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/core/ports"
	"github.com/samirrijal/magvar/internal/pkg/geospatial"
	"github.com/samirrijal/magvar/internal/pkg/ntptime"
)

// cacheCellDeg is the grid cell used to key single-point lookups (~1 km).
// Declination varies over far larger scales than that.
const cacheCellDeg = 0.01

// DeclinationService evaluates magnetic declination against a shared
// geomagnetic model.
type DeclinationService struct {
	catalog ports.ModelCatalog
	cache   ports.CacheService
	epoch   int
	workers int
}

// NewDeclinationService creates a new DeclinationService. epochYear selects
// the model generation; workers bounds batch fan-out (0 means GOMAXPROCS).
func NewDeclinationService(catalog ports.ModelCatalog, cache ports.CacheService, epochYear, workers int) *DeclinationService {
	return &DeclinationService{catalog: catalog, cache: cache, epoch: epochYear, workers: workers}
}

// EpochYear returns the configured model generation.
func (s *DeclinationService) EpochYear() int {
	return s.epoch
}

// Evaluate returns declination in degrees (east positive) for every sample
// in the batch. The model is resolved once and shared by all workers. A
// sample with a NaN coordinate, timestamp or depth yields NaN at its index;
// an infinite timestamp fails the whole batch.
func (s *DeclinationService) Evaluate(ctx context.Context, b domain.ObservationBatch) ([]float64, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	for i, ts := range b.Times {
		if math.IsInf(ts, 0) {
			return nil, fmt.Errorf("sample %d: %w", i, ntptime.ErrInvalidTimestamp)
		}
	}

	model, err := s.catalog.Resolve(s.epoch)
	if err != nil {
		return nil, err
	}

	n := b.Len()
	out := make([]float64, n)

	nw := s.workers
	if nw <= 0 {
		nw = runtime.GOMAXPROCS(0)
	}
	if nw > n {
		nw = n
	}
	if nw <= 1 {
		for i := 0; i < n; i++ {
			out[i] = evalSample(model, b, i)
		}
		return out, nil
	}

	// Each worker owns a contiguous index range and writes only its own slots.
	var wg sync.WaitGroup
	chunk := (n + nw - 1) / nw
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				out[i] = evalSample(model, b, i)
			}
		}(lo, hi)
	}
	wg.Wait()

	return out, nil
}

// EvaluateAt evaluates a single position at a wall-clock time. Results are
// cached on a snapped coordinate grid.
func (s *DeclinationService) EvaluateAt(ctx context.Context, lat, lon, depthM float64, o domain.Orientation, at time.Time) (float64, error) {
	model, err := s.catalog.Resolve(s.epoch)
	if err != nil {
		return 0, err
	}

	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsNaN(depthM) {
		return math.NaN(), nil
	}

	date := at.UTC().Truncate(24 * time.Hour)

	cacheKey := fmt.Sprintf("decl:%d:%s:%.4f:%.4f:%.0f:%d",
		s.epoch, date.Format("2006-01-02"),
		geospatial.SnapGrid(lat, cacheCellDeg), geospatial.SnapGrid(lon, cacheCellDeg),
		depthM, o)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var v float64
			if err := json.Unmarshal(data, &v); err == nil {
				return v, nil
			}
		}
	}

	d := model.Declination(lat, lon, domain.ModelDepthKM(depthM, o), date)

	// Cache for an hour; the date component keeps entries from going stale.
	if s.cache != nil {
		if data, err := json.Marshal(d); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 3600)
		}
	}

	return d, nil
}

func evalSample(model ports.GeomagneticModel, b domain.ObservationBatch, i int) float64 {
	lat, lon, ts := b.Lats[i], b.Lons[i], b.Times[i]
	depth := b.DepthAt(i)
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsNaN(ts) || math.IsNaN(depth) {
		return math.NaN()
	}

	date, err := ntptime.Date(ts)
	if err != nil {
		return math.NaN()
	}
	return model.Declination(lat, lon, domain.ModelDepthKM(depth, b.Orientation), date)
}
