package repository

import (
	"context"
	"database/sql"
	"time"

	"shiftledger/internal/checkin/domain"
	"shiftledger/internal/db"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a check-in request repository that uses the given db for persistence.
// db may be a *sql.DB or a *sql.Tx when the caller needs the write inside a transaction.
func NewPostgresRepository(db db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `id, org_id, user_id, shift_id, request_type, status,
	latitude, longitude, accuracy_meters, distance_from_geofence_meters, reason,
	requested_at, expires_at, reviewed_by, reviewed_at, denial_reason, created_at`

// GetByID returns the request for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM checkin_requests WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// Create persists the request. The request must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, req *domain.Request) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkin_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		req.ID, req.OrgID, req.UserID, nullString(req.ShiftID), string(req.RequestType), string(req.Status),
		req.Location.Latitude, req.Location.Longitude, req.Location.AccuracyMeters,
		floatToNullFloat(req.DistanceFromGeofenceMeters), req.Reason,
		req.RequestedAt, req.ExpiresAt, nullString(req.ReviewedBy), timeToNullTime(req.ReviewedAt),
		nullString(req.DenialReason), req.CreatedAt,
	)
	return err
}

// ListPendingByOrg returns pending, unexpired requests for the org, oldest
// first. Expired rows are excluded even before the sweep relabels them.
func (r *PostgresRepository) ListPendingByOrg(ctx context.Context, orgID string) ([]*domain.Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM checkin_requests
		WHERE org_id = $1 AND status = 'pending' AND expires_at > now()
		ORDER BY created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListByUser returns the user's most recent requests, any status.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM checkin_requests
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// UpdateReview records the review outcome for a still-pending request.
// Returns false when no pending row matched (already reviewed or expired).
func (r *PostgresRepository) UpdateReview(ctx context.Context, req *domain.Request) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE checkin_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4, denial_reason = $5
		WHERE id = $1 AND status = 'pending'`,
		req.ID, string(req.Status), nullString(req.ReviewedBy),
		timeToNullTime(req.ReviewedAt), nullString(req.DenialReason),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExpirePending moves pending requests past their expiry to auto_expired.
func (r *PostgresRepository) ExpirePending(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE checkin_requests SET status = 'auto_expired'
		WHERE status = 'pending' AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectRequests(rows *sql.Rows) ([]*domain.Request, error) {
	var out []*domain.Request
	for rows.Next() {
		var req domain.Request
		var shiftID, reviewedBy, denialReason sql.NullString
		var distance sql.NullFloat64
		var reviewedAt sql.NullTime
		if err := rows.Scan(
			&req.ID, &req.OrgID, &req.UserID, &shiftID, &req.RequestType, &req.Status,
			&req.Location.Latitude, &req.Location.Longitude, &req.Location.AccuracyMeters,
			&distance, &req.Reason, &req.RequestedAt, &req.ExpiresAt,
			&reviewedBy, &reviewedAt, &denialReason, &req.CreatedAt,
		); err != nil {
			return nil, err
		}
		req.ShiftID = shiftID.String
		req.ReviewedBy = reviewedBy.String
		req.DenialReason = denialReason.String
		req.Location.CapturedAt = req.RequestedAt
		if distance.Valid {
			d := distance.Float64
			req.DistanceFromGeofenceMeters = &d
		}
		if reviewedAt.Valid {
			req.ReviewedAt = &reviewedAt.Time
		}
		out = append(out, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
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

func floatToNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
