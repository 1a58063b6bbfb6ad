package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/service"
)

// CreateTripRequest is the body of POST /trips. Leaving photo_ids out creates
// an empty trip; sending it, even as [], asks for a trip built from photos.
type CreateTripRequest struct {
	Name        string       `json:"name" validate:"max=200"`
	Description string       `json:"description" validate:"max=2000"`
	PhotoIDs    *[]uuid.UUID `json:"photo_ids" validate:"omitempty,max=1000"`
	StartAt     *time.Time   `json:"start_at"`
	EndAt       *time.Time   `json:"end_at"`
}

// UpdateTripRequest is the body of PATCH /trips/{id}. Absent fields are left
// unchanged. Membership is not accepted here.
type UpdateTripRequest struct {
	Name        *string    `json:"name" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
	CoverID     *uuid.UUID `json:"cover_id"`
}

// TripResponse is the wire form of a trip.
type TripResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	MemberIDs   []uuid.UUID      `json:"member_ids"`
	PhotoCount  int              `json:"photo_count"`
	Location    *domain.Location `json:"location"`
	StartAt     *time.Time       `json:"start_at"`
	EndAt       *time.Time       `json:"end_at"`
	CoverID     *uuid.UUID       `json:"cover_id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// TripListResponse is the body of GET /trips.
type TripListResponse struct {
	Data       []TripResponse `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var body CreateTripRequest
	if !decodeBody(w, r, &body, false) {
		return
	}

	var (
		trip domain.Trip
		err  error
	)
	if body.PhotoIDs == nil {
		trip, err = s.trips.CreateEmptyTrip(r.Context(), owner, body.Name, body.Description)
	} else {
		trip, err = s.trips.CreateTrip(r.Context(), service.CreateTripInput{
			OwnerID:     owner,
			Name:        body.Name,
			Description: body.Description,
			PhotoIDs:    *body.PhotoIDs,
			StartAt:     body.StartAt,
			EndAt:       body.EndAt,
		})
	}
	if err != nil {
		s.writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(trip))
}

// ListTrips handles GET /trips.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var page, limit *int
	if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &page); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "page must be an integer")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "limit must be an integer")
		return
	}

	params := domain.NewPaginationParams(page, limit)
	trips, total, err := s.trips.ListTrips(r.Context(), owner, params)
	if err != nil {
		s.writeServiceError(w, r, err, "trip")
		return
	}

	data := make([]TripResponse, len(trips))
	for i, t := range trips {
		data[i] = tripToResponse(t)
	}
	writeJSON(w, http.StatusOK, TripListResponse{
		Data:       data,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: total},
	})
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	trip, err := s.trips.GetTrip(r.Context(), id, owner)
	if err != nil {
		s.writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// UpdateTrip handles PATCH /trips/{id}.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body UpdateTripRequest
	if !decodeBody(w, r, &body, false) {
		return
	}

	trip, err := s.trips.UpdateTrip(r.Context(), id, owner, domain.TripPatch{
		Name:        body.Name,
		Description: body.Description,
		StartAt:     body.StartAt,
		EndAt:       body.EndAt,
		CoverID:     body.CoverID,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// DeleteTrip handles DELETE /trips/{id}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.trips.DeleteTrip(r.Context(), id, owner); err != nil {
		s.writeServiceError(w, r, err, "trip")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- mapping helpers --------------------------------------------------------

// pathID binds the {id} URL parameter as a UUID, answering 400 when it is not one.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// tripToResponse converts a domain.Trip into its wire form.
func tripToResponse(t domain.Trip) TripResponse {
	members := t.MemberIDs
	if members == nil {
		members = []uuid.UUID{}
	}
	return TripResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		MemberIDs:   members,
		PhotoCount:  len(members),
		Location:    t.Location,
		StartAt:     t.StartAt,
		EndAt:       t.EndAt,
		CoverID:     t.CoverID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
