// Package handler implements the HTTP handlers for the photo trips API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, membership.go, cluster.go) but share the same
// Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/middleware"
	"github.com/pkordes/photo-trips/internal/service"
)

// TripServicer defines the business operations the trip handlers depend on.
// It is declared here, in the consumer package, so handler tests can inject a
// mock without touching the database or service layer.
type TripServicer interface {
	CreateTrip(ctx context.Context, in service.CreateTripInput) (domain.Trip, error)
	CreateEmptyTrip(ctx context.Context, ownerID uuid.UUID, name, description string) (domain.Trip, error)
	GetTrip(ctx context.Context, tripID, ownerID uuid.UUID) (domain.Trip, error)
	ListTrips(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error)
	UpdateTrip(ctx context.Context, tripID, ownerID uuid.UUID, patch domain.TripPatch) (domain.Trip, error)
	DeleteTrip(ctx context.Context, tripID, ownerID uuid.UUID) error
	AddPhotosToTrip(ctx context.Context, tripID, ownerID uuid.UUID, photoIDs []uuid.UUID) (domain.Trip, error)
	RemovePhotosFromTrip(ctx context.Context, tripID, ownerID uuid.UUID, photoIDs []uuid.UUID) (domain.Trip, error)
	AutoCluster(ctx context.Context, ownerID uuid.UUID, opts domain.ClusterOptions) (service.AutoClusterResult, error)
	ReconcileOrphans(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// BreakerReporter exposes a circuit breaker state for the health endpoint.
// *geocode.Client implements it.
type BreakerReporter interface {
	BreakerState() string
}

// Server serves every API endpoint. Build the router with Routes.
type Server struct {
	trips    TripServicer
	defaults domain.ClusterOptions
	log      *slog.Logger
	geocoder BreakerReporter
}

// ServerOption configures optional Server dependencies.
type ServerOption func(*Server)

// WithGeocoder adds the geocoder's breaker state to GET /healthz.
func WithGeocoder(g BreakerReporter) ServerOption {
	return func(s *Server) { s.geocoder = g }
}

// NewServer constructs the Server with all its dependencies.
// defaults fills the auto-cluster thresholds a request leaves out.
// A nil log means slog.Default().
func NewServer(trips TripServicer, defaults domain.ClusterOptions, log *slog.Logger, opts ...ServerOption) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{trips: trips, defaults: defaults, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns a router with every endpoint registered. Everything under
// /trips requires the owner header; health and the API document do not.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/trips", func(r chi.Router) {
		r.Use(middleware.RequireOwner)

		r.Get("/", s.ListTrips)
		r.Post("/", s.CreateTrip)
		r.Post("/auto-cluster", s.AutoCluster)
		r.Post("/reconcile", s.ReconcileOrphans)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetTrip)
			r.Patch("/", s.UpdateTrip)
			r.Delete("/", s.DeleteTrip)
			r.Post("/photos", s.AddPhotos)
			r.Delete("/photos", s.RemovePhotos)
		})
	})
	return r
}

// owner returns the caller's id. RequireOwner guarantees it is present on
// every /trips route; the 401 here only guards against miswiring.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", middleware.OwnerHeader+" header is required")
	}
	return id, ok
}
