// Package domain defines the stored geofence entity.
package domain

import (
	"errors"
	"time"

	"shiftledger/internal/geo"
)

// Geofence is a circular on-site zone owned by an organization. Immutable
// during a single evaluation; Active controls whether clock events are
// checked against it.
type Geofence struct {
	ID           string
	OrgID        string
	Name         string
	Center       geo.Coordinate
	RadiusMeters float64
	Active       bool
	CreatedAt    time.Time
}

// Validate validates the geofence for persistence. Returns an error describing the first validation failure.
func (g *Geofence) Validate() error {
	if g.OrgID == "" {
		return errors.New("org_id is required")
	}
	if !g.Center.Valid() {
		return errors.New("center is outside valid coordinate range")
	}
	if g.RadiusMeters <= 0 {
		return errors.New("radius must be positive")
	}
	return nil
}

// Zone returns the evaluator-facing view of the fence.
func (g *Geofence) Zone() geo.Geofence {
	return geo.Geofence{ID: g.ID, Center: g.Center, RadiusMeters: g.RadiusMeters}
}
