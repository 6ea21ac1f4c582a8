package handler

import (
	"errors"
	"net/http"

	"shiftledger/internal/checkin/service"
	"shiftledger/internal/geo"
	"shiftledger/internal/server/respond"
	"shiftledger/internal/timesheet"
)

// writeCheckinError translates check-in service errors to HTTP responses.
func writeCheckinError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRequestNotFound):
		respond.Error(w, http.StatusNotFound, "request_not_found", err.Error(), nil)
	case errors.Is(err, service.ErrOrganizationUnknown):
		respond.Error(w, http.StatusNotFound, "organization_not_found", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidReason):
		respond.Error(w, http.StatusBadRequest, "invalid_reason", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidHistoricalRange):
		respond.Error(w, http.StatusBadRequest, "invalid_historical_range", err.Error(), nil)
	case errors.Is(err, service.ErrMissingDenialReason):
		respond.Error(w, http.StatusBadRequest, "missing_denial_reason", err.Error(), nil)
	case errors.Is(err, geo.ErrInvalidCoordinates):
		respond.Error(w, http.StatusBadRequest, "invalid_coordinates", err.Error(), nil)
	case errors.Is(err, timesheet.ErrInvalidRange):
		respond.Error(w, http.StatusBadRequest, "invalid_range", err.Error(), nil)
	case errors.Is(err, service.ErrAlreadyReviewed):
		respond.Error(w, http.StatusConflict, "already_reviewed", err.Error(), nil)
	case errors.Is(err, service.ErrRequestExpired):
		respond.Error(w, http.StatusConflict, "request_expired", err.Error(), nil)
	case errors.Is(err, service.ErrAlreadyOpen):
		respond.Error(w, http.StatusConflict, "already_clocked_in", err.Error(), nil)
	case errors.Is(err, service.ErrNoOpenShift):
		respond.Error(w, http.StatusConflict, "no_open_shift", err.Error(), nil)
	default:
		respond.Internal(w)
	}
}
