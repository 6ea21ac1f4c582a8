package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"shiftledger/internal/db"
	"shiftledger/internal/geo"
	"shiftledger/internal/shift/domain"
)

// ErrShiftNotOpen is returned by Close when the shift no longer has status
// open (already closed by another device, or swept stale).
var ErrShiftNotOpen = errors.New("shift is not open")

// uniqueViolation is the Postgres SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a shift repository that uses the given db for persistence.
// db may be a *sql.DB or a *sql.Tx when the caller needs the write inside a transaction.
func NewPostgresRepository(db db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const shiftColumns = `id, org_id, user_id, geofence_id, status,
	clock_in_at, clock_in_latitude, clock_in_longitude, clock_in_accuracy_meters, clock_in_location_status,
	clock_out_at, clock_out_latitude, clock_out_longitude, clock_out_accuracy_meters, clock_out_location_status,
	duration_minutes, break_minutes, shift_date, is_revised, was_offline, created_at, updated_at`

// GetByID returns the shift for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Shift, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id)
	s, err := scanShift(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// GetOpenByUser returns the user's open shift, or nil when none. The partial
// unique index guarantees at most one row.
func (r *PostgresRepository) GetOpenByUser(ctx context.Context, userID string) (*domain.Shift, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE user_id = $1 AND status = 'open'`, userID)
	s, err := scanShift(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Create inserts an open shift. The shift must have ID set. A unique
// violation on the one-open-per-user index maps to ErrOpenShiftExists.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Shift) error {
	var outLat, outLon, outAcc sql.NullFloat64
	if s.ClockOutLocation != nil {
		outLat = sql.NullFloat64{Float64: s.ClockOutLocation.Latitude, Valid: true}
		outLon = sql.NullFloat64{Float64: s.ClockOutLocation.Longitude, Valid: true}
		outAcc = sql.NullFloat64{Float64: s.ClockOutLocation.AccuracyMeters, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		s.ID, s.OrgID, s.UserID, nullString(s.GeofenceID), string(s.Status),
		s.ClockInAt, s.ClockInLocation.Latitude, s.ClockInLocation.Longitude,
		s.ClockInLocation.AccuracyMeters, string(s.ClockInLocationStatus),
		timeToNullTime(s.ClockOutAt), outLat, outLon, outAcc,
		nullString(string(s.ClockOutLocationStatus)),
		intToNullInt(s.DurationMinutes), s.BreakMinutes, s.ShiftDate, s.IsRevised, s.WasOffline,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrOpenShiftExists
		}
		return err
	}
	return nil
}

// Close records clock-out fields and moves the shift to closed. The status
// guard makes the update race-safe: a shift already closed or swept stale
// returns ErrShiftNotOpen.
func (r *PostgresRepository) Close(ctx context.Context, s *domain.Shift) error {
	if s.ClockOutAt == nil || s.ClockOutLocation == nil || s.DurationMinutes == nil {
		return errors.New("close requires clock_out_at, clock_out_location, and duration_minutes")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE shifts SET status = 'closed',
			clock_out_at = $2, clock_out_latitude = $3, clock_out_longitude = $4,
			clock_out_accuracy_meters = $5, clock_out_location_status = $6,
			duration_minutes = $7, break_minutes = $8, updated_at = $9
		WHERE id = $1 AND status = 'open'`,
		s.ID, *s.ClockOutAt, s.ClockOutLocation.Latitude, s.ClockOutLocation.Longitude,
		s.ClockOutLocation.AccuracyMeters, string(s.ClockOutLocationStatus),
		*s.DurationMinutes, s.BreakMinutes, s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrShiftNotOpen
	}
	return nil
}

// MarkStaleByOrgPolicy moves shifts open longer than their org's staleness
// threshold to stale. The status guard keeps re-runs and concurrent
// clock-outs safe.
func (r *PostgresRepository) MarkStaleByOrgPolicy(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE shifts SET status = 'stale', updated_at = now()
		FROM organizations o
		WHERE shifts.org_id = o.id AND shifts.status = 'open'
			AND shifts.clock_in_at < now() - make_interval(mins => o.stale_shift_threshold_minutes)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClosedMinutesInWindow sums closed net minutes for the user in [from, to).
func (r *PostgresRepository) ClosedMinutesInWindow(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT SUM(duration_minutes) FROM shifts
		WHERE user_id = $1 AND status = 'closed' AND clock_in_at >= $2 AND clock_in_at < $3`,
		userID, from, to,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}

func scanShift(row *sql.Row) (*domain.Shift, error) {
	var s domain.Shift
	var geofenceID, outStatus sql.NullString
	var outAt sql.NullTime
	var outLat, outLon, outAcc sql.NullFloat64
	var duration sql.NullInt64
	err := row.Scan(
		&s.ID, &s.OrgID, &s.UserID, &geofenceID, &s.Status,
		&s.ClockInAt, &s.ClockInLocation.Latitude, &s.ClockInLocation.Longitude,
		&s.ClockInLocation.AccuracyMeters, &s.ClockInLocationStatus,
		&outAt, &outLat, &outLon, &outAcc, &outStatus,
		&duration, &s.BreakMinutes, &s.ShiftDate, &s.IsRevised, &s.WasOffline,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.GeofenceID = geofenceID.String
	s.ClockInLocation.CapturedAt = s.ClockInAt
	if outAt.Valid {
		s.ClockOutAt = &outAt.Time
		s.ClockOutLocation = &geo.Sample{
			Coordinate:     geo.Coordinate{Latitude: outLat.Float64, Longitude: outLon.Float64},
			AccuracyMeters: outAcc.Float64,
			CapturedAt:     outAt.Time,
		}
	}
	s.ClockOutLocationStatus = domain.LocationStatus(outStatus.String)
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationMinutes = &d
	}
	return &s, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func intToNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
