// Package domain defines check-in requests: manager-mediated exceptions for
// clock events that policy rejected or that were missed entirely.
package domain

import (
	"errors"
	"time"

	"shiftledger/internal/geo"
)

// Type says which clock event the request stands in for.
type Type string

const (
	TypeClockIn  Type = "clock_in"
	TypeClockOut Type = "clock_out"
)

// Status is a request's review state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	// StatusAutoExpired: pending past expires_at; never reviewable.
	StatusAutoExpired Status = "auto_expired"
)

// MinReasonLength is the shortest acceptable justification.
const MinReasonLength = 10

// MaxHistoricalAge bounds how far back a historical request may reach.
const MaxHistoricalAge = 30 * 24 * time.Hour

// Request is a pending clock event awaiting manager arbitration.
type Request struct {
	ID     string
	OrgID  string
	UserID string
	// ShiftID references the open shift for clock_out requests; "" for clock_in.
	ShiftID     string
	RequestType Type
	Status      Status
	Location    geo.Sample
	// DistanceFromGeofenceMeters is how far outside the nearest fence the
	// reported location was; nil when the org had no fences.
	DistanceFromGeofenceMeters *float64
	Reason                     string
	// RequestedAt is when the clock event should take effect. For immediate
	// requests it is submission time; for historical ones, the missed instant.
	RequestedAt  time.Time
	ExpiresAt    time.Time
	ReviewedBy   string
	ReviewedAt   *time.Time
	DenialReason string
	CreatedAt    time.Time
}

// Validate validates the request for persistence. Returns an error describing the first validation failure.
func (r *Request) Validate() error {
	if r.OrgID == "" {
		return errors.New("org_id is required")
	}
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.RequestType != TypeClockIn && r.RequestType != TypeClockOut {
		return errors.New("request_type must be clock_in or clock_out")
	}
	if r.Status == "" {
		return errors.New("status is required")
	}
	if len(r.Reason) < MinReasonLength {
		return errors.New("reason too short")
	}
	if r.RequestedAt.IsZero() {
		return errors.New("requested_at is required")
	}
	if r.ExpiresAt.IsZero() {
		return errors.New("expires_at is required")
	}
	return nil
}

// Expired reports whether the request's review window has passed at now.
func (r *Request) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Reviewable reports whether the request can still be approved or denied.
func (r *Request) Reviewable(now time.Time) bool {
	return r.Status == StatusPending && !r.Expired(now)
}
