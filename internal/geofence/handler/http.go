// Package handler exposes geofence management over HTTP. All routes are
// manager-only; the router enforces the role.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"shiftledger/internal/geo"
	"shiftledger/internal/geofence/domain"
	"shiftledger/internal/server/middleware"
	"shiftledger/internal/server/respond"
)

// Repository is the part of the geofence repository the handler uses.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Geofence, error)
	ListActiveByOrg(ctx context.Context, orgID string) ([]*domain.Geofence, error)
	Create(ctx context.Context, g *domain.Geofence) error
	SetActive(ctx context.Context, id string, active bool) error
}

// Handler serves the /v1/geofences endpoints.
type Handler struct {
	fences Repository
}

// NewHandler returns a geofence handler.
func NewHandler(fences Repository) *Handler {
	return &Handler{fences: fences}
}

type fenceResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
	Active       bool    `json:"active"`
}

func toResponse(g *domain.Geofence) fenceResponse {
	return fenceResponse{
		ID:           g.ID,
		Name:         g.Name,
		Latitude:     g.Center.Latitude,
		Longitude:    g.Center.Longitude,
		RadiusMeters: g.RadiusMeters,
		Active:       g.Active,
	}
}

// List handles GET /v1/geofences: the org's active fences.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	fences, err := h.fences.ListActiveByOrg(r.Context(), actor.OrgID)
	if err != nil {
		respond.Internal(w)
		return
	}
	out := make([]fenceResponse, 0, len(fences))
	for _, f := range fences {
		out = append(out, toResponse(f))
	}
	respond.JSON(w, http.StatusOK, struct {
		Geofences []fenceResponse `json:"geofences"`
	}{Geofences: out})
}

type createFenceRequest struct {
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// Create handles POST /v1/geofences.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	var body createFenceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", nil)
		return
	}

	fence := &domain.Geofence{
		ID:           uuid.New().String(),
		OrgID:        actor.OrgID,
		Name:         body.Name,
		Center:       geo.Coordinate{Latitude: body.Latitude, Longitude: body.Longitude},
		RadiusMeters: body.RadiusMeters,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := fence.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_geofence", err.Error(), nil)
		return
	}
	if err := h.fences.Create(r.Context(), fence); err != nil {
		respond.Internal(w)
		return
	}
	respond.JSON(w, http.StatusCreated, toResponse(fence))
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive handles PATCH /v1/geofences/{id}/active. Deactivated fences stop
// participating in clock-event evaluation but keep their history.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	var body setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", nil)
		return
	}

	id := chi.URLParam(r, "id")
	fence, err := h.fences.GetByID(r.Context(), id)
	if err != nil {
		respond.Internal(w)
		return
	}
	if fence == nil || fence.OrgID != actor.OrgID {
		respond.Error(w, http.StatusNotFound, "geofence_not_found", "geofence not found", nil)
		return
	}

	if err := h.fences.SetActive(r.Context(), id, body.Active); err != nil {
		respond.Internal(w)
		return
	}
	fence.Active = body.Active
	respond.JSON(w, http.StatusOK, toResponse(fence))
}
