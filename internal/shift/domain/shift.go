// Package domain defines the shift entity and its status machine.
package domain

import (
	"errors"
	"time"

	"shiftledger/internal/geo"
)

// Status is a shift's lifecycle state.
type Status string

const (
	// StatusOpen: created by a clock-in, awaiting clock-out.
	StatusOpen Status = "open"
	// StatusClosed: terminal, set by clock-out.
	StatusClosed Status = "closed"
	// StatusStale: left open past the staleness threshold; set by the sweep,
	// never by a client action.
	StatusStale Status = "stale"
	// StatusPendingRevision / StatusRevised: manager-mediated resolution of a
	// stale shift. Revised is terminal for the automated engine.
	StatusPendingRevision Status = "pending_revision"
	StatusRevised         Status = "revised"
)

// LocationStatus classifies where a clock event happened relative to the
// org's geofences.
type LocationStatus string

const (
	LocationInRange    LocationStatus = "in_range"
	LocationOutOfRange LocationStatus = "out_of_range"
)

// Shift is the central ledger entity: one span of work for one user.
type Shift struct {
	ID         string
	OrgID      string
	UserID     string
	GeofenceID string // matched fence at clock-in; "" when none
	Status     Status

	ClockInAt             time.Time
	ClockInLocation       geo.Sample
	ClockInLocationStatus LocationStatus

	ClockOutAt             *time.Time
	ClockOutLocation       *geo.Sample
	ClockOutLocationStatus LocationStatus // "" until closed

	DurationMinutes *int
	BreakMinutes    int
	// ShiftDate is the attributed calendar date: always the clock-in day in
	// the org's timezone, even when clock-out falls on the next day.
	ShiftDate  time.Time
	IsRevised  bool
	WasOffline bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate validates the shift for persistence. Returns an error describing the first validation failure.
func (s *Shift) Validate() error {
	if s.OrgID == "" {
		return errors.New("org_id is required")
	}
	if s.UserID == "" {
		return errors.New("user_id is required")
	}
	if s.Status == "" {
		return errors.New("status is required")
	}
	if s.ClockInAt.IsZero() {
		return errors.New("clock_in_at is required")
	}
	if s.ShiftDate.IsZero() {
		return errors.New("shift_date is required")
	}
	if s.Status == StatusClosed && s.ClockOutAt == nil {
		return errors.New("closed shift requires clock_out_at")
	}
	return nil
}

// Terminal reports whether the status is terminal for the automated engine.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusRevised
}

// CanTransitionTo reports whether the engine may move a shift from s to next.
// Manager-mediated moves (stale → pending_revision → revised) are included;
// everything terminal stays terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusOpen:
		return next == StatusClosed || next == StatusStale
	case StatusStale:
		return next == StatusPendingRevision
	case StatusPendingRevision:
		return next == StatusRevised
	default:
		return false
	}
}
