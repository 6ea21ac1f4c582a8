package domain

import (
	"errors"
	"time"

	"shiftledger/internal/geo"
)

// Organization represents a tenant and the clock-event policy settings the
// shift engine reads: timezone for date attribution, strict mode, the
// fallback primary point, and break/staleness policy.
type Organization struct {
	ID   string
	Name string
	// Timezone is an IANA zone name (e.g. "America/New_York"); date
	// attribution and midnight-crossing are resolved in it.
	Timezone string
	// StrictMode rejects out-of-range clock-ins outright instead of recording
	// them with a warning. Clock-out is never blocked.
	StrictMode bool
	// PrimaryPoint is the fallback geofence used when the org has no explicit
	// geofences. Nil when unset.
	PrimaryPoint *geo.Geofence
	// AutoBreakThresholdMinutes / AutoBreakMinutes is the unrecorded-break
	// deduction policy.
	AutoBreakThresholdMinutes int
	AutoBreakMinutes          int
	// MaxAccuracyMeters is the verification accuracy ceiling.
	MaxAccuracyMeters float64
	// StaleShiftThresholdMinutes is how long a shift may stay open before the
	// sweep marks it stale.
	StaleShiftThresholdMinutes int
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// Defaults applied by MergeWithDefaults.
const (
	DefaultTimezone                   = "UTC"
	DefaultAutoBreakThresholdMinutes  = 6 * 60
	DefaultAutoBreakMinutes           = 30
	DefaultMaxAccuracyMeters          = 100.0
	DefaultStaleShiftThresholdMinutes = 16 * 60
)

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Organization) Validate() error {
	if o.ID == "" {
		return errors.New("id is required")
	}
	if o.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// MergeWithDefaults returns a copy of o with zero-valued policy fields
// replaced by defaults, so callers never branch on unset settings.
func MergeWithDefaults(o *Organization) *Organization {
	out := *o
	if out.Timezone == "" {
		out.Timezone = DefaultTimezone
	}
	if out.AutoBreakThresholdMinutes <= 0 {
		out.AutoBreakThresholdMinutes = DefaultAutoBreakThresholdMinutes
	}
	if out.AutoBreakMinutes <= 0 {
		out.AutoBreakMinutes = DefaultAutoBreakMinutes
	}
	if out.MaxAccuracyMeters <= 0 {
		out.MaxAccuracyMeters = DefaultMaxAccuracyMeters
	}
	if out.StaleShiftThresholdMinutes <= 0 {
		out.StaleShiftThresholdMinutes = DefaultStaleShiftThresholdMinutes
	}
	return &out
}

// Location resolves the org timezone, falling back to UTC when the zone name
// is unknown or unset.
func (o *Organization) Location() *time.Location {
	if o.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
