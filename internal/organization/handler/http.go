// Package handler exposes organization policy settings over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"shiftledger/internal/geo"
	"shiftledger/internal/organization/domain"
	"shiftledger/internal/server/middleware"
	"shiftledger/internal/server/respond"
)

// Repository is the part of the organization repository the handler uses.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	Update(ctx context.Context, o *domain.Organization) error
}

// Handler serves the /v1/organization endpoints. Reads are open to any
// authenticated member; updates are manager-only (enforced by the router).
type Handler struct {
	orgs Repository
}

// NewHandler returns an organization settings handler.
func NewHandler(orgs Repository) *Handler {
	return &Handler{orgs: orgs}
}

type primaryPointBody struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

type orgResponse struct {
	ID                         string            `json:"id"`
	Name                       string            `json:"name"`
	Timezone                   string            `json:"timezone"`
	StrictMode                 bool              `json:"strict_mode"`
	PrimaryPoint               *primaryPointBody `json:"primary_point,omitempty"`
	AutoBreakThresholdMinutes  int               `json:"auto_break_threshold_minutes"`
	AutoBreakMinutes           int               `json:"auto_break_minutes"`
	MaxAccuracyMeters          float64           `json:"max_accuracy_meters"`
	StaleShiftThresholdMinutes int               `json:"stale_shift_threshold_minutes"`
}

func toResponse(o *domain.Organization) orgResponse {
	resp := orgResponse{
		ID:                         o.ID,
		Name:                       o.Name,
		Timezone:                   o.Timezone,
		StrictMode:                 o.StrictMode,
		AutoBreakThresholdMinutes:  o.AutoBreakThresholdMinutes,
		AutoBreakMinutes:           o.AutoBreakMinutes,
		MaxAccuracyMeters:          o.MaxAccuracyMeters,
		StaleShiftThresholdMinutes: o.StaleShiftThresholdMinutes,
	}
	if o.PrimaryPoint != nil {
		resp.PrimaryPoint = &primaryPointBody{
			Latitude:     o.PrimaryPoint.Center.Latitude,
			Longitude:    o.PrimaryPoint.Center.Longitude,
			RadiusMeters: o.PrimaryPoint.RadiusMeters,
		}
	}
	return resp
}

// Get handles GET /v1/organization: the caller's org with defaults applied.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	org, err := h.orgs.GetByID(r.Context(), actor.OrgID)
	if err != nil {
		respond.Internal(w)
		return
	}
	if org == nil {
		respond.Error(w, http.StatusNotFound, "organization_not_found", "organization not found", nil)
		return
	}
	respond.JSON(w, http.StatusOK, toResponse(domain.MergeWithDefaults(org)))
}

type updateOrgRequest struct {
	Name                       *string           `json:"name,omitempty"`
	Timezone                   *string           `json:"timezone,omitempty"`
	StrictMode                 *bool             `json:"strict_mode,omitempty"`
	PrimaryPoint               *primaryPointBody `json:"primary_point,omitempty"`
	AutoBreakThresholdMinutes  *int              `json:"auto_break_threshold_minutes,omitempty"`
	AutoBreakMinutes           *int              `json:"auto_break_minutes,omitempty"`
	MaxAccuracyMeters          *float64          `json:"max_accuracy_meters,omitempty"`
	StaleShiftThresholdMinutes *int              `json:"stale_shift_threshold_minutes,omitempty"`
}

// Update handles PUT /v1/organization. Fields absent from the body are left
// unchanged.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	var body updateOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", nil)
		return
	}

	org, err := h.orgs.GetByID(r.Context(), actor.OrgID)
	if err != nil {
		respond.Internal(w)
		return
	}
	if org == nil {
		respond.Error(w, http.StatusNotFound, "organization_not_found", "organization not found", nil)
		return
	}

	if body.Name != nil {
		org.Name = *body.Name
	}
	if body.Timezone != nil {
		if _, err := time.LoadLocation(*body.Timezone); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_timezone", "timezone must be a valid IANA zone name", nil)
			return
		}
		org.Timezone = *body.Timezone
	}
	if body.StrictMode != nil {
		org.StrictMode = *body.StrictMode
	}
	if body.PrimaryPoint != nil {
		center := geo.Coordinate{Latitude: body.PrimaryPoint.Latitude, Longitude: body.PrimaryPoint.Longitude}
		if !center.Valid() || body.PrimaryPoint.RadiusMeters <= 0 {
			respond.Error(w, http.StatusBadRequest, "invalid_primary_point", "primary point needs valid coordinates and a positive radius", nil)
			return
		}
		org.PrimaryPoint = &geo.Geofence{Center: center, RadiusMeters: body.PrimaryPoint.RadiusMeters}
	}
	if body.AutoBreakThresholdMinutes != nil {
		org.AutoBreakThresholdMinutes = *body.AutoBreakThresholdMinutes
	}
	if body.AutoBreakMinutes != nil {
		org.AutoBreakMinutes = *body.AutoBreakMinutes
	}
	if body.MaxAccuracyMeters != nil {
		org.MaxAccuracyMeters = *body.MaxAccuracyMeters
	}
	if body.StaleShiftThresholdMinutes != nil {
		org.StaleShiftThresholdMinutes = *body.StaleShiftThresholdMinutes
	}
	org.UpdatedAt = time.Now().UTC()

	if err := org.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_organization", err.Error(), nil)
		return
	}
	if err := h.orgs.Update(r.Context(), org); err != nil {
		respond.Internal(w)
		return
	}
	respond.JSON(w, http.StatusOK, toResponse(domain.MergeWithDefaults(org)))
}
