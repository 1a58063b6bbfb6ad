package handler

import (
	"net/http"

	"github.com/google/uuid"
)

// PhotoIDsRequest is the body of POST and DELETE /trips/{id}/photos.
type PhotoIDsRequest struct {
	PhotoIDs []uuid.UUID `json:"photo_ids" validate:"required,min=1,max=1000"`
}

// AddPhotos handles POST /trips/{id}/photos.
// Photos already in another trip are moved; photos already in this trip are ignored.
func (s *Server) AddPhotos(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body PhotoIDsRequest
	if !decodeBody(w, r, &body, false) {
		return
	}

	trip, err := s.trips.AddPhotosToTrip(r.Context(), id, owner, body.PhotoIDs)
	if err != nil {
		s.writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// RemovePhotos handles DELETE /trips/{id}/photos.
func (s *Server) RemovePhotos(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body PhotoIDsRequest
	if !decodeBody(w, r, &body, false) {
		return
	}

	trip, err := s.trips.RemovePhotosFromTrip(r.Context(), id, owner, body.PhotoIDs)
	if err != nil {
		s.writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}
