// Package handler serves readiness/liveness for Kubernetes, load balancers,
// and CI.
package handler

import (
	"context"
	"net/http"

	"shiftledger/internal/server/respond"
)

// Pinger checks database connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the policy engine.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves GET /healthz.
type Handler struct {
	db     Pinger
	policy PolicyChecker
}

// NewHandler returns a health handler. Either dependency may be nil to skip
// that check.
func NewHandler(db Pinger, policy PolicyChecker) *Handler {
	return &Handler{db: db, policy: policy}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthz reports 200 serving or 503 not_serving. A failing dependency never
// turns into a transport error; the status code carries the verdict.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	serving := true

	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			checks["database"] = "unreachable"
			serving = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(r.Context()); err != nil {
			checks["policy"] = "unreachable"
			serving = false
		} else {
			checks["policy"] = "ok"
		}
	}

	status := http.StatusOK
	body := healthResponse{Status: "serving", Checks: checks}
	if !serving {
		status = http.StatusServiceUnavailable
		body.Status = "not_serving"
	}
	respond.JSON(w, status, body)
}
