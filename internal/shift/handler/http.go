// Package handler exposes shift clock operations over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"shiftledger/internal/geo"
	"shiftledger/internal/server/middleware"
	"shiftledger/internal/server/respond"
	"shiftledger/internal/shift/domain"
	"shiftledger/internal/shift/service"
	"shiftledger/internal/telemetry"
	teldomain "shiftledger/internal/telemetry/domain"
)

// offlineReplayHeader marks a request replayed from a device's offline queue.
const offlineReplayHeader = "X-Offline-Replay"

// ShiftService is the part of the shift service the handler uses.
type ShiftService interface {
	ClockIn(ctx context.Context, p service.ClockInParams) (*service.ClockInResult, error)
	ClockOut(ctx context.Context, p service.ClockOutParams) (*service.ClockOutResult, error)
	GetCurrentOpenShift(ctx context.Context, userID string) (*domain.Shift, error)
}

// Handler serves the /v1/shifts endpoints.
type Handler struct {
	shifts  ShiftService
	emitter telemetry.EventEmitter
}

// NewHandler returns a shift handler. emitter may be nil to disable telemetry.
func NewHandler(shifts ShiftService, emitter telemetry.EventEmitter) *Handler {
	return &Handler{shifts: shifts, emitter: emitter}
}

type locationBody struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	CapturedAt     time.Time `json:"captured_at"`
}

func (b locationBody) sample() geo.Sample {
	captured := b.CapturedAt
	if captured.IsZero() {
		captured = time.Now().UTC()
	}
	return geo.Sample{
		Coordinate:     geo.Coordinate{Latitude: b.Latitude, Longitude: b.Longitude},
		AccuracyMeters: b.AccuracyMeters,
		CapturedAt:     captured,
	}
}

type clockInRequest struct {
	locationBody
}

type clockInResponse struct {
	ShiftID        string   `json:"shift_id"`
	Status         string   `json:"status"`
	LocationStatus string   `json:"location_status"`
	DistanceMeters float64  `json:"distance_meters"`
	Flags          []string `json:"flags,omitempty"`
}

// ClockIn handles POST /v1/shifts/clock-in.
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	var body clockInRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", nil)
		return
	}

	offline := r.Header.Get(offlineReplayHeader) != ""
	res, err := h.shifts.ClockIn(r.Context(), service.ClockInParams{
		OrgID:    actor.OrgID,
		UserID:   actor.UserID,
		Location: body.sample(),
		Offline:  offline,
	})
	if err != nil {
		writeShiftError(w, err)
		return
	}

	h.emit(r, &teldomain.ShiftEvent{
		OrgID:          actor.OrgID,
		UserID:         actor.UserID,
		ShiftID:        res.ShiftID,
		EventType:      teldomain.EventClockIn,
		Source:         eventSource(offline),
		LocationStatus: string(res.LocationStatus),
		Offline:        offline,
		CreatedAt:      time.Now().UTC(),
	})

	respond.JSON(w, http.StatusCreated, clockInResponse{
		ShiftID:        res.ShiftID,
		Status:         string(res.Status),
		LocationStatus: string(res.LocationStatus),
		DistanceMeters: res.Evaluation.DistanceMeters,
		Flags:          res.Flags,
	})
}

type clockOutRequest struct {
	locationBody
	BreakMinutes int `json:"break_minutes"`
}

// clockOutResponse reports the closed shift. duration_minutes is the net
// worked time, the same value the shift row stores; break_minutes is the
// deduction behind it.
type clockOutResponse struct {
	ShiftID         string   `json:"shift_id"`
	DurationMinutes int      `json:"duration_minutes"`
	NetMinutes      int      `json:"net_minutes"`
	BreakMinutes    int      `json:"break_minutes"`
	LocationStatus  string   `json:"location_status"`
	CrossedMidnight bool     `json:"crossed_midnight"`
	RegularHours    float64  `json:"regular_hours"`
	OvertimeHours   float64  `json:"overtime_hours"`
	Flags           []string `json:"flags,omitempty"`
}

// ClockOut handles POST /v1/shifts/clock-out.
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	var body clockOutRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", nil)
		return
	}
	if body.BreakMinutes < 0 {
		respond.Error(w, http.StatusBadRequest, "invalid_break", "break_minutes must not be negative", nil)
		return
	}

	offline := r.Header.Get(offlineReplayHeader) != ""
	res, err := h.shifts.ClockOut(r.Context(), service.ClockOutParams{
		OrgID:        actor.OrgID,
		UserID:       actor.UserID,
		Location:     body.sample(),
		BreakMinutes: body.BreakMinutes,
		Offline:      offline,
	})
	if err != nil {
		writeShiftError(w, err)
		return
	}

	h.emit(r, &teldomain.ShiftEvent{
		OrgID:          actor.OrgID,
		UserID:         actor.UserID,
		ShiftID:        res.ShiftID,
		EventType:      teldomain.EventClockOut,
		Source:         eventSource(offline),
		LocationStatus: string(res.LocationStatus),
		Offline:        offline,
		CreatedAt:      time.Now().UTC(),
	})

	respond.JSON(w, http.StatusOK, clockOutResponse{
		ShiftID:         res.ShiftID,
		DurationMinutes: res.DurationMinutes,
		NetMinutes:      res.NetMinutes,
		BreakMinutes:    res.BreakMinutes,
		LocationStatus:  string(res.LocationStatus),
		CrossedMidnight: res.CrossedMidnight,
		RegularHours:    res.RegularHours,
		OvertimeHours:   res.OvertimeHours,
		Flags:           res.Flags,
	})
}

type currentShiftResponse struct {
	ShiftID        string    `json:"shift_id"`
	Status         string    `json:"status"`
	ClockInAt      time.Time `json:"clock_in_at"`
	ShiftDate      string    `json:"shift_date"`
	LocationStatus string    `json:"clock_in_location_status"`
	Offline        bool      `json:"offline"`
}

// Current handles GET /v1/shifts/current. 404 when the user has no open shift.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization", nil)
		return
	}

	shift, err := h.shifts.GetCurrentOpenShift(r.Context(), actor.UserID)
	if err != nil {
		respond.Internal(w)
		return
	}
	if shift == nil {
		respond.Error(w, http.StatusNotFound, "no_open_shift", "user has no open shift", nil)
		return
	}

	respond.JSON(w, http.StatusOK, currentShiftResponse{
		ShiftID:        shift.ID,
		Status:         string(shift.Status),
		ClockInAt:      shift.ClockInAt,
		ShiftDate:      shift.ShiftDate.Format("2006-01-02"),
		LocationStatus: string(shift.ClockInLocationStatus),
		Offline:        shift.WasOffline,
	})
}

func (h *Handler) emit(r *http.Request, event *teldomain.ShiftEvent) {
	telemetry.EmitAsync(h.emitter, r.Context(), event)
}

func eventSource(offline bool) string {
	if offline {
		return teldomain.SourceOfflineSync
	}
	return teldomain.SourceAPI
}
