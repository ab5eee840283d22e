package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/magvar/internal/core/domain"
)

// SeriesRepo implements ports.CorrectedSeriesRepository with pgx.
type SeriesRepo struct {
	db *DB
}

// NewSeriesRepo creates a new SeriesRepo.
func NewSeriesRepo(db *DB) *SeriesRepo {
	return &SeriesRepo{db: db}
}

const seriesColumns = `deployment_id, time, lat, lon, depth_m,
	east, north, east_true, north_true, declination_deg, model_epoch`

// InsertBatch writes corrected samples using pgx.Batch. Re-delivered frames
// land on the (deployment_id, time) key and overwrite in place, so the
// stream consumer stays idempotent.
func (r *SeriesRepo) InsertBatch(ctx context.Context, vs []domain.CorrectedVector) error {
	batch := &pgx.Batch{}
	for _, v := range vs {
		batch.Queue(`
			INSERT INTO corrected_series (deployment_id, time, lat, lon, depth_m,
				east, north, east_true, north_true, declination_deg, model_epoch)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (deployment_id, time) DO UPDATE
			SET lat = EXCLUDED.lat, lon = EXCLUDED.lon, depth_m = EXCLUDED.depth_m,
			    east = EXCLUDED.east, north = EXCLUDED.north,
			    east_true = EXCLUDED.east_true, north_true = EXCLUDED.north_true,
			    declination_deg = EXCLUDED.declination_deg,
			    model_epoch = EXCLUDED.model_epoch
		`, v.DeploymentID, v.Time, v.Lat, v.Lon, v.DepthM,
			v.East, v.North, v.EastTrue, v.NorthTrue, v.DeclinationDeg, v.ModelEpoch)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range vs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Window returns the samples of a deployment inside [from, to], oldest first.
func (r *SeriesRepo) Window(ctx context.Context, deploymentID string, from, to time.Time) ([]domain.CorrectedVector, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+seriesColumns+`
		 FROM corrected_series
		 WHERE deployment_id = $1 AND time >= $2 AND time <= $3
		 ORDER BY time`, deploymentID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSeries(rows)
}

// Latest returns the most recent samples of a deployment, oldest first.
func (r *SeriesRepo) Latest(ctx context.Context, deploymentID string, limit int) ([]domain.CorrectedVector, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+seriesColumns+` FROM (
			SELECT `+seriesColumns+`
			FROM corrected_series
			WHERE deployment_id = $1
			ORDER BY time DESC
			LIMIT $2
		 ) recent ORDER BY time`, deploymentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSeries(rows)
}

// UpdateCorrections rewrites the corrected components of existing rows and
// reports how many were touched.
func (r *SeriesRepo) UpdateCorrections(ctx context.Context, vs []domain.CorrectedVector) (int64, error) {
	batch := &pgx.Batch{}
	for _, v := range vs {
		batch.Queue(`
			UPDATE corrected_series
			SET east_true = $3, north_true = $4, declination_deg = $5, model_epoch = $6
			WHERE deployment_id = $1 AND time = $2
		`, v.DeploymentID, v.Time, v.EastTrue, v.NorthTrue, v.DeclinationDeg, v.ModelEpoch)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	var updated int64
	for range vs {
		tag, err := br.Exec()
		if err != nil {
			return updated, fmt.Errorf("batch exec: %w", err)
		}
		updated += tag.RowsAffected()
	}
	return updated, nil
}

func scanSeries(rows pgx.Rows) ([]domain.CorrectedVector, error) {
	var vs []domain.CorrectedVector
	for rows.Next() {
		var v domain.CorrectedVector
		if err := rows.Scan(
			&v.DeploymentID, &v.Time, &v.Lat, &v.Lon, &v.DepthM,
			&v.East, &v.North, &v.EastTrue, &v.NorthTrue, &v.DeclinationDeg,
			&v.ModelEpoch,
		); err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, rows.Err()
}
