package repository

import (
	"context"
	"errors"
	"time"

	"shiftledger/internal/shift/domain"
)

// ErrOpenShiftExists is returned by Create when the user already has an open
// shift (the partial unique index fired).
var ErrOpenShiftExists = errors.New("user already has an open shift")

// Repository defines persistence for shifts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Shift, error)
	// GetOpenByUser returns the user's open shift, or nil when none.
	GetOpenByUser(ctx context.Context, userID string) (*domain.Shift, error)
	// Create inserts an open shift. Returns ErrOpenShiftExists when the
	// single-open-shift constraint fires; the check and insert are one atomic
	// statement.
	Create(ctx context.Context, s *domain.Shift) error
	// Close records the clock-out fields and moves the shift to closed.
	Close(ctx context.Context, s *domain.Shift) error
	// MarkStaleByOrgPolicy moves shifts open longer than their org's
	// staleness threshold to stale and returns how many rows changed.
	// Idempotent: the status guard in the WHERE clause means re-runs and
	// concurrent clock-outs touch nothing.
	MarkStaleByOrgPolicy(ctx context.Context) (int64, error)
	// ClosedMinutesInWindow sums closed net minutes for the user in
	// [from, to), for the rolling weekly overtime window.
	ClosedMinutesInWindow(ctx context.Context, userID string, from, to time.Time) (int, error)
}
