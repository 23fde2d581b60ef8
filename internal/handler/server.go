// Package handler implements the HTTP handlers for the school-run API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (trip.go, tracking.go, health.go) but all share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/service"
)

// TripServicer defines the lifecycle operations the trip handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type TripServicer interface {
	Start(ctx context.Context, driverUserID uuid.UUID, role domain.Role, direction domain.TripDirection, routeName *string) (service.StartResult, error)
	UpdateTargetStatus(ctx context.Context, driverUserID uuid.UUID, role domain.Role, tripID, targetID uuid.UUID, status domain.TargetStatus) error
	End(ctx context.Context, userID uuid.UUID, role domain.Role, tripID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, role domain.Role, f domain.TripListFilter) ([]domain.Trip, error)
	Get(ctx context.Context, tripID uuid.UUID) (domain.TripDetail, error)
}

// LocationServicer defines the ingestion operation the location handler
// depends on.
type LocationServicer interface {
	AddLocations(ctx context.Context, driverUserID uuid.UUID, role domain.Role, tripID uuid.UUID, points []domain.LocationPoint) (int, error)
}

// LiveServicer defines the live-view operations the tracking handlers
// depend on.
type LiveServicer interface {
	View(ctx context.Context, userID uuid.UUID, role domain.Role, schoolID *uuid.UUID) (service.LiveView, error)
	Mine(ctx context.Context, userID uuid.UUID, role domain.Role) (*domain.ParentLiveView, error)
}

// Server holds the handlers for all API endpoints.
// Methods are in domain-specific files but all operate on this struct.
type Server struct {
	trips     TripServicer
	locations LocationServicer
	live      LiveServicer
	openapi   []byte
	validate  *validator.Validate
	log       *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// openapi is the raw spec document served at /openapi.yaml; nil disables
// that route's content (it will serve an empty body).
func NewServer(trips TripServicer, locations LocationServicer, live LiveServicer, openapi []byte, log *slog.Logger) *Server {
	return &Server{
		trips:     trips,
		locations: locations,
		live:      live,
		openapi:   openapi,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       log,
	}
}

// Mount registers every route on r. Routes other than the health check and
// the spec document are wrapped in the auth middleware, which rejects
// requests without a valid bearer token before a handler runs.
func (s *Server) Mount(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/trips/start", s.StartTrip)
		r.Get("/trips", s.ListTrips)
		r.Get("/trips/{tripID}", s.GetTrip)
		r.Post("/trips/{tripID}/locations", s.AddLocations)
		r.Patch("/trips/{tripID}/targets/{targetID}", s.UpdateTargetStatus)
		r.Post("/trips/{tripID}/end", s.EndTrip)

		r.Get("/tracking/live", s.LiveView)
		r.Get("/tracking/live/mine", s.LiveMine)
	})
}
