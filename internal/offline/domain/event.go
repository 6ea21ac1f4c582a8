// Package domain defines the device-side offline event queue: clock events
// captured without connectivity and replayed once the network returns.
package domain

import (
	"errors"
	"time"

	"shiftledger/internal/geo"
)

// Type says which action was captured offline.
type Type string

const (
	TypeClockIn  Type = "clock_in"
	TypeClockOut Type = "clock_out"
	// TypeRequestSubmit is an out-of-range check-in request drafted offline;
	// it replays against the arbiter endpoint, not the clock endpoints.
	TypeRequestSubmit Type = "request_submit"
)

// Status is an event's sync state.
type Status string

const (
	// StatusPending: queued, not yet accepted by the server.
	StatusPending Status = "pending"
	// StatusSynced: accepted by the server; terminal.
	StatusSynced Status = "synced"
	// StatusConflicted: the server rejected it as conflicting with recorded
	// state (e.g. a shift already open); terminal, never retried.
	StatusConflicted Status = "conflicted"
	// StatusAbandoned: failed MaxRetries times; terminal.
	StatusAbandoned Status = "abandoned"
)

// MaxRetries is how many failed sync attempts an event gets before it is
// abandoned.
const MaxRetries = 3

// ErrConflict is returned by a sender when the server rejects the event as
// conflicting with already-recorded state. Conflicted events are dropped, not
// retried.
var ErrConflict = errors.New("event conflicts with recorded state")

// ErrRejected is returned by a sender when the server rejects the event as
// invalid. The event can never succeed, so it is abandoned without retry.
var ErrRejected = errors.New("event rejected by server")

// ErrUnreachable is returned by a sender when the server cannot be reached at
// all. The whole pass stops and nothing is charged a retry.
var ErrUnreachable = errors.New("server unreachable")

// Event is one queued offline action. RecordedAt is the instant the user
// acted, not the sync time; the server stores it as the clock instant (for
// clock events) or the requested instant (for check-in requests).
type Event struct {
	ID           string     `json:"id"`
	Type         Type       `json:"type"`
	Status       Status     `json:"status"`
	Location     geo.Sample `json:"location"`
	BreakMinutes int        `json:"break_minutes,omitempty"`
	// Reason is required for request_submit events; unused otherwise.
	Reason     string    `json:"reason,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Exhausted reports whether the event has used up its retry budget.
func (e *Event) Exhausted() bool {
	return e.RetryCount >= MaxRetries
}
