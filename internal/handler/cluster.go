package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/photo-trips/internal/domain"
)

// AutoClusterRequest overrides the server's default thresholds. Every field
// is optional and the body itself may be empty.
type AutoClusterRequest struct {
	MaxDistanceKm   *float64 `json:"max_distance_km"`
	MaxTimeGapHours *float64 `json:"max_time_gap_hours"`
	MinSize         *int     `json:"min_size"`
}

// GroupFailureResponse reports one group that did not become a trip.
type GroupFailureResponse struct {
	Index    int         `json:"index"`
	PhotoIDs []uuid.UUID `json:"photo_ids"`
	Error    string      `json:"error"`
}

// AutoClusterResponse is the body of POST /trips/auto-cluster.
type AutoClusterResponse struct {
	Candidates int                    `json:"candidates"`
	Groups     int                    `json:"groups"`
	Created    []TripResponse         `json:"created"`
	Failures   []GroupFailureResponse `json:"failures"`
	Summary    string                 `json:"summary"`
}

// AutoCluster handles POST /trips/auto-cluster.
// Individual group failures are part of a 200 response; only a run that could
// not start is an error status.
func (s *Server) AutoCluster(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var body AutoClusterRequest
	if !decodeBody(w, r, &body, true) {
		return
	}

	result, err := s.trips.AutoCluster(r.Context(), owner, body.options(s.defaults))
	if err != nil {
		s.writeServiceError(w, r, err, "trip")
		return
	}

	resp := AutoClusterResponse{
		Candidates: result.Candidates,
		Groups:     result.Groups,
		Created:    make([]TripResponse, len(result.Created)),
		Failures:   make([]GroupFailureResponse, len(result.Failures)),
		Summary:    result.Summary(),
	}
	for i, t := range result.Created {
		resp.Created[i] = tripToResponse(t)
	}
	for i, f := range result.Failures {
		resp.Failures[i] = GroupFailureResponse{Index: f.Index, PhotoIDs: f.PhotoIDs, Error: failureMessage(f.Err)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReconcileOrphans handles POST /trips/reconcile.
func (s *Server) ReconcileOrphans(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}

	repaired, err := s.trips.ReconcileOrphans(r.Context(), owner)
	if err != nil {
		s.writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"repaired": repaired})
}

func (b AutoClusterRequest) options(defaults domain.ClusterOptions) domain.ClusterOptions {
	opts := defaults
	if b.MaxDistanceKm != nil {
		opts.MaxDistanceKm = *b.MaxDistanceKm
	}
	if b.MaxTimeGapHours != nil {
		opts.MaxTimeGapHours = *b.MaxTimeGapHours
	}
	if b.MinSize != nil {
		opts.MinSize = *b.MinSize
	}
	return opts
}

// failureMessage keeps store internals out of the response: clients see the
// failing step, not the driver error.
func failureMessage(err error) string {
	var storeErr *domain.StoreError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &storeErr):
		return "store failure: " + storeErr.Step
	case errors.Is(err, domain.ErrConflict):
		return "conflict: photos were claimed by another run"
	}
	return unwrapMessage(err)
}
