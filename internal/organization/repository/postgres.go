package repository

import (
	"context"
	"database/sql"
	"errors"

	"shiftledger/internal/db"
	"shiftledger/internal/geo"
	"shiftledger/internal/organization/domain"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orgColumns = `id, name, timezone, strict_mode,
	primary_latitude, primary_longitude, primary_radius_meters,
	auto_break_threshold_minutes, auto_break_minutes, max_accuracy_meters,
	stale_shift_threshold_minutes, created_at, updated_at`

// GetByID returns the organization for id with defaults merged, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	o, err := scanOrganization(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return domain.MergeWithDefaults(o), nil
}

// Create persists the organization to the database. The organization must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Organization) error {
	lat, lon, radius := primaryPointColumns(o)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (`+orgColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.Name, o.Timezone, o.StrictMode, lat, lon, radius,
		o.AutoBreakThresholdMinutes, o.AutoBreakMinutes, o.MaxAccuracyMeters,
		o.StaleShiftThresholdMinutes, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

// Update updates the existing organization record in the database. Returns an error if the update fails.
func (r *PostgresRepository) Update(ctx context.Context, o *domain.Organization) error {
	lat, lon, radius := primaryPointColumns(o)
	_, err := r.db.ExecContext(ctx, `
		UPDATE organizations SET name = $2, timezone = $3, strict_mode = $4,
			primary_latitude = $5, primary_longitude = $6, primary_radius_meters = $7,
			auto_break_threshold_minutes = $8, auto_break_minutes = $9,
			max_accuracy_meters = $10, stale_shift_threshold_minutes = $11, updated_at = $12
		WHERE id = $1`,
		o.ID, o.Name, o.Timezone, o.StrictMode, lat, lon, radius,
		o.AutoBreakThresholdMinutes, o.AutoBreakMinutes, o.MaxAccuracyMeters,
		o.StaleShiftThresholdMinutes, o.UpdatedAt,
	)
	return err
}

func primaryPointColumns(o *domain.Organization) (lat, lon, radius sql.NullFloat64) {
	if o.PrimaryPoint == nil {
		return
	}
	lat = sql.NullFloat64{Float64: o.PrimaryPoint.Center.Latitude, Valid: true}
	lon = sql.NullFloat64{Float64: o.PrimaryPoint.Center.Longitude, Valid: true}
	radius = sql.NullFloat64{Float64: o.PrimaryPoint.RadiusMeters, Valid: true}
	return
}

func scanOrganization(row *sql.Row) (*domain.Organization, error) {
	var o domain.Organization
	var lat, lon, radius sql.NullFloat64
	err := row.Scan(
		&o.ID, &o.Name, &o.Timezone, &o.StrictMode, &lat, &lon, &radius,
		&o.AutoBreakThresholdMinutes, &o.AutoBreakMinutes, &o.MaxAccuracyMeters,
		&o.StaleShiftThresholdMinutes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid && radius.Valid {
		o.PrimaryPoint = &geo.Geofence{
			Center:       geo.Coordinate{Latitude: lat.Float64, Longitude: lon.Float64},
			RadiusMeters: radius.Float64,
		}
	}
	return &o, nil
}
