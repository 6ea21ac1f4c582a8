package domain

import "time"

// Event types emitted by the shift engine.
const (
	EventClockIn          = "shift_clock_in"
	EventClockOut         = "shift_clock_out"
	EventShiftStale       = "shift_stale"
	EventRequestSubmitted = "checkin_request_submitted"
	EventRequestReviewed  = "checkin_request_reviewed"
)

// Sources an event can originate from.
const (
	SourceAPI         = "api"
	SourceOfflineSync = "offline_sync"
	SourceSweeper     = "sweeper"
)

// ShiftEvent is one telemetry event for a clock or review action. JSON field
// names are shared with the Kafka payload and the Loki label extractor.
type ShiftEvent struct {
	OrgID          string    `json:"orgId"`
	UserID         string    `json:"userId,omitempty"`
	ShiftID        string    `json:"shiftId,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	EventType      string    `json:"eventType"`
	Source         string    `json:"source"`
	LocationStatus string    `json:"locationStatus,omitempty"`
	Offline        bool      `json:"offline,omitempty"`
	Metadata       []byte    `json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
