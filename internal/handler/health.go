package handler

import (
	"net/http"

	"github.com/pkordes/photo-trips/spec"
)

// GetHealth handles GET /healthz.
// It returns HTTP 200 with {"status":"ok"} when the server is running. With a
// geocoder configured the body also carries its breaker state; an open
// breaker only disables place names, so the status stays "ok".
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{"status": "ok"}
	if s.geocoder != nil {
		body["geocoder"] = s.geocoder.BreakerState()
	}
	writeJSON(w, http.StatusOK, body)
}

// GetOpenAPI handles GET /openapi.yaml.
func (s *Server) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(spec.OpenAPI)
}
