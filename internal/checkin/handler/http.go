// Package handler exposes check-in request submission and review over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shiftledger/internal/checkin/domain"
	"shiftledger/internal/checkin/service"
	"shiftledger/internal/geo"
	"shiftledger/internal/server/middleware"
	"shiftledger/internal/server/respond"
	"shiftledger/internal/telemetry"
	teldomain "shiftledger/internal/telemetry/domain"
)

// CheckinService is the part of the check-in service the handler uses.
type CheckinService interface {
	Submit(ctx context.Context, p service.SubmitParams) (*domain.Request, error)
	Review(ctx context.Context, p service.ReviewParams) (*domain.Request, error)
	ListPending(ctx context.Context, orgID string) ([]*domain.Request, error)
	ListMine(ctx context.Context, userID string, limit int) ([]*domain.Request, error)
}

// Handler serves the /v1/checkin-requests endpoints.
type Handler struct {
	requests CheckinService
	emitter  telemetry.EventEmitter
}

// NewHandler returns a check-in request handler. emitter may be nil to disable telemetry.
func NewHandler(requests CheckinService, emitter telemetry.EventEmitter) *Handler {
	return &Handler{requests: requests, emitter: emitter}
}

type submitRequest struct {
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	AccuracyMeters float64    `json:"accuracy_meters"`
	CapturedAt     time.Time  `json:"captured_at"`
	Reason         string     `json:"reason"`
	RequestType    string     `json:"request_type,omitempty"`
	RequestedAt    *time.Time `json:"requested_at,omitempty"`
}

type requestResponse struct {
	ID                         string     `json:"id"`
	RequestType                string     `json:"request_type"`
	Status                     string     `json:"status"`
	UserID                     string     `json:"user_id"`
	ShiftID                    string     `json:"shift_id,omitempty"`
	Reason                     string     `json:"reason"`
	DistanceFromGeofenceMeters *float64   `json:"distance_from_geofence_meters,omitempty"`
	RequestedAt                time.Time  `json:"requested_at"`
	ExpiresAt                  time.Time  `json:"expires_at"`
	ReviewedBy                 string     `json:"reviewed_by,omitempty"`
	ReviewedAt                 *time.Time `json:"reviewed_at,omitempty"`
	DenialReason               string     `json:"denial_reason,omitempty"`
	CreatedAt                  time.Time  `json:"created_at"`
}

func toResponse(r *domain.Request) requestResponse {
	return requestResponse{
		ID:                         r.ID,
		RequestType:                string(r.RequestType),
		Status:                     string(r.Status),
		UserID:                     r.UserID,
		ShiftID:                    r.ShiftID,
		Reason:                     r.Reason,
		DistanceFromGeofenceMeters: r.DistanceFromGeofenceMeters,
		RequestedAt:                r.RequestedAt,
		ExpiresAt:                  r.ExpiresAt,
		ReviewedBy:                 r.ReviewedBy,
		ReviewedAt:                 r.ReviewedAt,
		DenialReason:               r.DenialReason,
		CreatedAt:                  r.CreatedAt,
	}
}

// Submit handles POST /v1/checkin-requests.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", nil)
		return
	}

	captured := body.CapturedAt
	if captured.IsZero() {
		captured = time.Now().UTC()
	}
	req, err := h.requests.Submit(r.Context(), service.SubmitParams{
		OrgID:  actor.OrgID,
		UserID: actor.UserID,
		Location: geo.Sample{
			Coordinate:     geo.Coordinate{Latitude: body.Latitude, Longitude: body.Longitude},
			AccuracyMeters: body.AccuracyMeters,
			CapturedAt:     captured,
		},
		Reason:      body.Reason,
		RequestType: domain.Type(body.RequestType),
		RequestedAt: body.RequestedAt,
	})
	if err != nil {
		writeCheckinError(w, err)
		return
	}

	telemetry.EmitAsync(h.emitter, r.Context(), &teldomain.ShiftEvent{
		OrgID:     actor.OrgID,
		UserID:    actor.UserID,
		RequestID: req.ID,
		EventType: teldomain.EventRequestSubmitted,
		Source:    teldomain.SourceAPI,
		CreatedAt: time.Now().UTC(),
	})

	respond.JSON(w, http.StatusCreated, toResponse(req))
}

// ListPending handles GET /v1/checkin-requests. Manager only.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	reqs, err := h.requests.ListPending(r.Context(), actor.OrgID)
	if err != nil {
		respond.Internal(w)
		return
	}
	out := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toResponse(req))
	}
	respond.JSON(w, http.StatusOK, struct {
		Requests []requestResponse `json:"requests"`
	}{Requests: out})
}

// ListMine handles GET /v1/checkin-requests/mine.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	reqs, err := h.requests.ListMine(r.Context(), actor.UserID, 50)
	if err != nil {
		respond.Internal(w)
		return
	}
	out := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toResponse(req))
	}
	respond.JSON(w, http.StatusOK, struct {
		Requests []requestResponse `json:"requests"`
	}{Requests: out})
}

type reviewRequest struct {
	Approve      bool   `json:"approve"`
	DenialReason string `json:"denial_reason,omitempty"`
}

// Review handles POST /v1/checkin-requests/{id}/review. Manager only.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	var body reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", nil)
		return
	}

	req, err := h.requests.Review(r.Context(), service.ReviewParams{
		RequestID:    chi.URLParam(r, "id"),
		ReviewerID:   actor.UserID,
		Approve:      body.Approve,
		DenialReason: body.DenialReason,
	})
	if err != nil {
		writeCheckinError(w, err)
		return
	}

	telemetry.EmitAsync(h.emitter, r.Context(), &teldomain.ShiftEvent{
		OrgID:     actor.OrgID,
		UserID:    req.UserID,
		RequestID: req.ID,
		ShiftID:   req.ShiftID,
		EventType: teldomain.EventRequestReviewed,
		Source:    teldomain.SourceAPI,
		CreatedAt: time.Now().UTC(),
	})

	respond.JSON(w, http.StatusOK, toResponse(req))
}
