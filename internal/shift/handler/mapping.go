package handler

import (
	"errors"
	"net/http"

	"shiftledger/internal/geo"
	"shiftledger/internal/server/respond"
	"shiftledger/internal/shift/service"
	"shiftledger/internal/timesheet"
)

// writeShiftError translates shift service errors to HTTP responses.
func writeShiftError(w http.ResponseWriter, err error) {
	var oor *service.OutOfRangeError
	if errors.As(err, &oor) {
		respond.Error(w, http.StatusConflict, "out_of_range", "location is outside the assigned geofence", map[string]any{
			"distance_from_edge_meters": oor.Evaluation.DistanceFromEdgeMeters,
			"requires_request":          oor.RequiresRequest,
		})
		return
	}
	var ver *service.VerificationError
	if errors.As(err, &ver) {
		respond.Error(w, http.StatusUnprocessableEntity, "unverifiable_location", "could not verify location", map[string]any{
			"flags": ver.Result.Flags,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrAlreadyOpen):
		respond.Error(w, http.StatusConflict, "already_clocked_in", err.Error(), nil)
	case errors.Is(err, service.ErrNoOpenShift):
		respond.Error(w, http.StatusConflict, "no_open_shift", err.Error(), nil)
	case errors.Is(err, service.ErrOrganizationUnknown):
		respond.Error(w, http.StatusNotFound, "organization_not_found", err.Error(), nil)
	case errors.Is(err, geo.ErrInvalidCoordinates):
		respond.Error(w, http.StatusBadRequest, "invalid_coordinates", err.Error(), nil)
	case errors.Is(err, timesheet.ErrInvalidRange):
		respond.Error(w, http.StatusBadRequest, "invalid_range", err.Error(), nil)
	default:
		respond.Internal(w)
	}
}
