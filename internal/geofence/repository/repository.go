package repository

import (
	"context"

	"shiftledger/internal/geo"
	"shiftledger/internal/geofence/domain"
)

// Repository defines persistence for geofences.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Geofence, error)
	ListActiveByOrg(ctx context.Context, orgID string) ([]*domain.Geofence, error)
	// ListActiveZones returns the active fences projected to evaluation zones.
	ListActiveZones(ctx context.Context, orgID string) ([]geo.Geofence, error)
	Create(ctx context.Context, g *domain.Geofence) error
	SetActive(ctx context.Context, id string, active bool) error
}
