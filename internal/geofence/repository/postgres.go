package repository

import (
	"context"
	"database/sql"
	"errors"

	"shiftledger/internal/db"
	"shiftledger/internal/geo"
	"shiftledger/internal/geofence/domain"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a geofence repository that uses the given db for persistence.
func NewPostgresRepository(db db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fenceColumns = `id, org_id, name, latitude, longitude, radius_meters, active, created_at`

// GetByID returns the geofence for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Geofence, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fenceColumns+` FROM geofences WHERE id = $1`, id)
	g, err := scanGeofence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

// ListActiveByOrg returns all active geofences for the given org. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListActiveByOrg(ctx context.Context, orgID string) ([]*domain.Geofence, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+fenceColumns+` FROM geofences WHERE org_id = $1 AND active ORDER BY created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Geofence
	for rows.Next() {
		var g domain.Geofence
		if err := rows.Scan(&g.ID, &g.OrgID, &g.Name, &g.Center.Latitude, &g.Center.Longitude,
			&g.RadiusMeters, &g.Active, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

// ListActiveZones returns the org's active fences projected to evaluation zones.
func (r *PostgresRepository) ListActiveZones(ctx context.Context, orgID string) ([]geo.Geofence, error) {
	fences, err := r.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	zones := make([]geo.Geofence, 0, len(fences))
	for _, f := range fences {
		zones = append(zones, f.Zone())
	}
	return zones, nil
}

// Create persists the geofence to the database. The geofence must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, g *domain.Geofence) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO geofences (`+fenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.ID, g.OrgID, g.Name, g.Center.Latitude, g.Center.Longitude,
		g.RadiusMeters, g.Active, g.CreatedAt,
	)
	return err
}

// SetActive toggles the fence's active flag. Returns an error if the update fails.
func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE geofences SET active = $2 WHERE id = $1`, id, active)
	return err
}

func scanGeofence(row *sql.Row) (*domain.Geofence, error) {
	var g domain.Geofence
	err := row.Scan(&g.ID, &g.OrgID, &g.Name, &g.Center.Latitude, &g.Center.Longitude,
		&g.RadiusMeters, &g.Active, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
