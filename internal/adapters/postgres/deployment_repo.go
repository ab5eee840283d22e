package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/magvar/internal/core/domain"
)

// DeploymentRepo implements ports.DeploymentRepository with pgx.
type DeploymentRepo struct {
	db *DB
}

// NewDeploymentRepo creates a new DeploymentRepo.
func NewDeploymentRepo(db *DB) *DeploymentRepo {
	return &DeploymentRepo{db: db}
}

const deploymentColumns = `id, platform_code, instrument_kind, lat, lon,
	nominal_depth_m, orientation, commissioned_at, decommissioned_at, created_at`

const upsertDeploymentSQL = `
	INSERT INTO deployments (id, platform_code, instrument_kind, lat, lon,
		nominal_depth_m, orientation, commissioned_at, decommissioned_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE
	SET platform_code = EXCLUDED.platform_code,
	    instrument_kind = EXCLUDED.instrument_kind,
	    lat = EXCLUDED.lat, lon = EXCLUDED.lon,
	    nominal_depth_m = EXCLUDED.nominal_depth_m,
	    orientation = EXCLUDED.orientation,
	    commissioned_at = EXCLUDED.commissioned_at,
	    decommissioned_at = EXCLUDED.decommissioned_at`

// Upsert inserts or updates a single deployment.
func (r *DeploymentRepo) Upsert(ctx context.Context, d *domain.Deployment) error {
	_, err := r.db.Pool.Exec(ctx, upsertDeploymentSQL,
		d.ID, d.PlatformCode, d.InstrumentKind, d.Site.Lat, d.Site.Lon,
		d.NominalDepthM, d.Orientation.String(), d.CommissionedAt, d.DecommissionedAt)
	return err
}

// UpsertBatch inserts many deployments using pgx.Batch.
func (r *DeploymentRepo) UpsertBatch(ctx context.Context, ds []domain.Deployment) error {
	batch := &pgx.Batch{}
	for _, d := range ds {
		batch.Queue(upsertDeploymentSQL,
			d.ID, d.PlatformCode, d.InstrumentKind, d.Site.Lat, d.Site.Lon,
			d.NominalDepthM, d.Orientation.String(), d.CommissionedAt, d.DecommissionedAt)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range ds {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a deployment by its reference designator.
func (r *DeploymentRepo) GetByID(ctx context.Context, id string) (*domain.Deployment, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE id = $1`, id)

	d, err := scanDeployment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrDeploymentNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// List returns a page of deployments ordered by ID plus the total count.
func (r *DeploymentRepo) List(ctx context.Context, limit, offset int) ([]domain.Deployment, int, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+deploymentColumns+`, count(*) OVER() AS total
		 FROM deployments ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		ds    []domain.Deployment
		total int
	)
	for rows.Next() {
		var (
			d           domain.Deployment
			orientation string
		)
		if err := rows.Scan(
			&d.ID, &d.PlatformCode, &d.InstrumentKind, &d.Site.Lat, &d.Site.Lon,
			&d.NominalDepthM, &orientation, &d.CommissionedAt, &d.DecommissionedAt,
			&d.CreatedAt, &total,
		); err != nil {
			return nil, 0, err
		}
		if d.Orientation, err = domain.ParseOrientation(orientation); err != nil {
			return nil, 0, fmt.Errorf("deployment %s: %w", d.ID, err)
		}
		ds = append(ds, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// An empty page past the end still needs the count.
	if len(ds) == 0 {
		if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM deployments`).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return ds, total, nil
}

// FindNearest returns active deployments ordered by a planar distance
// approximation. Callers refine to great-circle metres.
func (r *DeploymentRepo) FindNearest(ctx context.Context, lat, lon float64, limit int) ([]domain.Deployment, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+deploymentColumns+`
		 FROM deployments
		 WHERE decommissioned_at IS NULL
		 ORDER BY (lat - $1)^2 + ((lon - $2) * cos(radians($1)))^2
		 LIMIT $3`, lat, lon, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ds []domain.Deployment
	for rows.Next() {
		var (
			d           domain.Deployment
			orientation string
		)
		if err := rows.Scan(
			&d.ID, &d.PlatformCode, &d.InstrumentKind, &d.Site.Lat, &d.Site.Lon,
			&d.NominalDepthM, &orientation, &d.CommissionedAt, &d.DecommissionedAt,
			&d.CreatedAt,
		); err != nil {
			return nil, err
		}
		if d.Orientation, err = domain.ParseOrientation(orientation); err != nil {
			return nil, fmt.Errorf("deployment %s: %w", d.ID, err)
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}

func scanDeployment(row pgx.Row) (*domain.Deployment, error) {
	var (
		d           domain.Deployment
		orientation string
	)
	err := row.Scan(
		&d.ID, &d.PlatformCode, &d.InstrumentKind, &d.Site.Lat, &d.Site.Lon,
		&d.NominalDepthM, &orientation, &d.CommissionedAt, &d.DecommissionedAt,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if d.Orientation, err = domain.ParseOrientation(orientation); err != nil {
		return nil, fmt.Errorf("deployment %s: %w", d.ID, err)
	}
	return &d, nil
}
