package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/handler"
	"github.com/pkordes/photo-trips/internal/middleware"
	"github.com/pkordes/photo-trips/internal/service"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs; an unset field panics if called.
type mockTripServicer struct {
	createTrip      func(ctx context.Context, in service.CreateTripInput) (domain.Trip, error)
	createEmptyTrip func(ctx context.Context, ownerID uuid.UUID, name, description string) (domain.Trip, error)
	getTrip         func(ctx context.Context, tripID, ownerID uuid.UUID) (domain.Trip, error)
	listTrips       func(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error)
	updateTrip      func(ctx context.Context, tripID, ownerID uuid.UUID, patch domain.TripPatch) (domain.Trip, error)
	deleteTrip      func(ctx context.Context, tripID, ownerID uuid.UUID) error
	addPhotos       func(ctx context.Context, tripID, ownerID uuid.UUID, photoIDs []uuid.UUID) (domain.Trip, error)
	removePhotos    func(ctx context.Context, tripID, ownerID uuid.UUID, photoIDs []uuid.UUID) (domain.Trip, error)
	autoCluster     func(ctx context.Context, ownerID uuid.UUID, opts domain.ClusterOptions) (service.AutoClusterResult, error)
	reconcile       func(ctx context.Context, ownerID uuid.UUID) (int, error)
}

func (m *mockTripServicer) CreateTrip(ctx context.Context, in service.CreateTripInput) (domain.Trip, error) {
	return m.createTrip(ctx, in)
}
func (m *mockTripServicer) CreateEmptyTrip(ctx context.Context, ownerID uuid.UUID, name, description string) (domain.Trip, error) {
	return m.createEmptyTrip(ctx, ownerID, name, description)
}
func (m *mockTripServicer) GetTrip(ctx context.Context, tripID, ownerID uuid.UUID) (domain.Trip, error) {
	return m.getTrip(ctx, tripID, ownerID)
}
func (m *mockTripServicer) ListTrips(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.listTrips(ctx, ownerID, p)
}
func (m *mockTripServicer) UpdateTrip(ctx context.Context, tripID, ownerID uuid.UUID, patch domain.TripPatch) (domain.Trip, error) {
	return m.updateTrip(ctx, tripID, ownerID, patch)
}
func (m *mockTripServicer) DeleteTrip(ctx context.Context, tripID, ownerID uuid.UUID) error {
	return m.deleteTrip(ctx, tripID, ownerID)
}
func (m *mockTripServicer) AddPhotosToTrip(ctx context.Context, tripID, ownerID uuid.UUID, photoIDs []uuid.UUID) (domain.Trip, error) {
	return m.addPhotos(ctx, tripID, ownerID, photoIDs)
}
func (m *mockTripServicer) RemovePhotosFromTrip(ctx context.Context, tripID, ownerID uuid.UUID, photoIDs []uuid.UUID) (domain.Trip, error) {
	return m.removePhotos(ctx, tripID, ownerID, photoIDs)
}
func (m *mockTripServicer) AutoCluster(ctx context.Context, ownerID uuid.UUID, opts domain.ClusterOptions) (service.AutoClusterResult, error) {
	return m.autoCluster(ctx, ownerID, opts)
}
func (m *mockTripServicer) ReconcileOrphans(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return m.reconcile(ctx, ownerID)
}

// compile-time checks: both the mock and the real service satisfy the interface.
var (
	_ handler.TripServicer = (*mockTripServicer)(nil)
	_ handler.TripServicer = (*service.TripService)(nil)
)

// ---- helpers ---------------------------------------------------------------

var testDefaults = domain.ClusterOptions{MaxDistanceKm: 50, MaxTimeGapHours: 24, MinSize: 3}

// newHTTPHandler wires a Server with the given mock the same way main.go
// wires the real service.
func newHTTPHandler(svc handler.TripServicer) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return handler.NewServer(svc, testDefaults, log).Routes()
}

// do sends a request as owner; a nil owner omits the header.
func do(t *testing.T, h http.Handler, method, path string, owner *uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		reader = jsonBody(t, b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if owner != nil {
		req.Header.Set(middleware.OwnerHeader, owner.String())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func tripFixture(owner uuid.UUID) domain.Trip {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(26 * time.Hour)
	members := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	return domain.Trip{
		ID:        uuid.New(),
		OwnerID:   owner,
		Name:      "Porto · Jun 1, 2025",
		MemberIDs: members,
		Location: &domain.Location{
			CentroidLat: 41.15, CentroidLng: -8.61,
			BoundingBox: domain.BoundingBox{North: 41.2, South: 41.1, East: -8.6, West: -8.62},
		},
		StartAt:   &start,
		EndAt:     &end,
		CoverID:   &members[0],
		CreatedAt: end,
		UpdatedAt: end,
	}
}
