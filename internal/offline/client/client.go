// Package client sends queued offline events to the shiftledger HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shiftledger/internal/offline/domain"
)

// offlineReplayHeader tells the server the event is a replay, not a live
// action. The server tags the shift accordingly.
const offlineReplayHeader = "X-Offline-Replay"

const requestTimeout = 10 * time.Second

// APIClient replays offline events against the clock endpoints.
type APIClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// New returns a client for the API at baseURL authenticating with the given
// bearer token.
func New(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type clockPayload struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	CapturedAt     time.Time `json:"captured_at"`
	BreakMinutes   int       `json:"break_minutes,omitempty"`
}

type requestPayload struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	CapturedAt     time.Time `json:"captured_at"`
	Reason         string    `json:"reason"`
	RequestedAt    time.Time `json:"requested_at"`
}

// Send posts the event to the matching endpoint: clock events go to the shift
// endpoints, drafted check-in requests to the arbiter. Server responses map to
// the queue's disposition errors: 409 is domain.ErrConflict, any other 4xx is
// domain.ErrRejected (the event can never succeed), and a transport failure is
// domain.ErrUnreachable.
func (c *APIClient) Send(ctx context.Context, e *domain.Event) error {
	var path string
	var payload any
	switch e.Type {
	case domain.TypeClockIn:
		path = "/v1/shifts/clock-in"
		payload = clockBody(e)
	case domain.TypeClockOut:
		path = "/v1/shifts/clock-out"
		payload = clockBody(e)
	case domain.TypeRequestSubmit:
		path = "/v1/checkin-requests"
		payload = requestPayload{
			Latitude:       e.Location.Latitude,
			Longitude:      e.Location.Longitude,
			AccuracyMeters: e.Location.AccuracyMeters,
			CapturedAt:     e.RecordedAt,
			Reason:         e.Reason,
			RequestedAt:    e.RecordedAt,
		}
	default:
		return fmt.Errorf("offline: unknown event type %q", e.Type)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set(offlineReplayHeader, "1")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrUnreachable, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return domain.ErrConflict
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %d for %s", domain.ErrRejected, resp.StatusCode, path)
	default:
		return fmt.Errorf("offline: server returned %d for %s", resp.StatusCode, path)
	}
}

func clockBody(e *domain.Event) clockPayload {
	return clockPayload{
		Latitude:       e.Location.Latitude,
		Longitude:      e.Location.Longitude,
		AccuracyMeters: e.Location.AccuracyMeters,
		CapturedAt:     e.RecordedAt,
		BreakMinutes:   e.BreakMinutes,
	}
}
