// Package server assembles the HTTP API: router, middleware, and handler
// registration.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	checkinhandler "shiftledger/internal/checkin/handler"
	fencehandler "shiftledger/internal/geofence/handler"
	healthhandler "shiftledger/internal/health/handler"
	orghandler "shiftledger/internal/organization/handler"
	"shiftledger/internal/security"
	"shiftledger/internal/server/middleware"
	shifthandler "shiftledger/internal/shift/handler"
)

// Deps are the handlers and providers the router wires together.
type Deps struct {
	Tokens  *security.TokenProvider
	Shifts  *shifthandler.Handler
	Checkin *checkinhandler.Handler
	Orgs    *orghandler.Handler
	Fences  *fencehandler.Handler
	Health  *healthhandler.Handler
}

// NewRouter builds the chi router with the full middleware chain. The
// returned handler is wrapped in otelhttp so every route gets traced.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", d.Health.Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.Tokens))

		r.Route("/shifts", func(r chi.Router) {
			r.Post("/clock-in", d.Shifts.ClockIn)
			r.Post("/clock-out", d.Shifts.ClockOut)
			r.Get("/current", d.Shifts.Current)
		})

		r.Route("/organization", func(r chi.Router) {
			r.Get("/", d.Orgs.Get)
			r.With(middleware.RequireManager).Put("/", d.Orgs.Update)
		})

		r.Route("/geofences", func(r chi.Router) {
			r.Use(middleware.RequireManager)
			r.Get("/", d.Fences.List)
			r.Post("/", d.Fences.Create)
			r.Patch("/{id}/active", d.Fences.SetActive)
		})

		r.Route("/checkin-requests", func(r chi.Router) {
			r.Post("/", d.Checkin.Submit)
			r.Get("/mine", d.Checkin.ListMine)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireManager)
				r.Get("/", d.Checkin.ListPending)
				r.Post("/{id}/review", d.Checkin.Review)
			})
		})
	})

	return otelhttp.NewHandler(r, "shiftledger-api")
}
