package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/validation"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeServiceError maps a service error onto a status code. what names the
// looked-up resource in 404 messages, e.g. "trip".
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", what+" not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", what+" belongs to another user")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", unwrapMessage(err))
	default:
		attrs := []any{"error", err, "path", r.URL.Path}
		var storeErr *domain.StoreError
		if errors.As(err, &storeErr) {
			attrs = append(attrs, "step", storeErr.Step)
		}
		s.log.ErrorContext(r.Context(), "request failed", attrs...)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// errEmptyBody is returned by decodeBody when the request has no body.
var errEmptyBody = errors.New("request body is required")

// decodeBody decodes a JSON body into v, rejecting unknown fields, and then
// validates v's struct tags. It writes the error response itself and reports
// whether the handler may continue. With optional set an empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		if !optional {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", errEmptyBody.Error())
			return false
		}
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		return false
	case err != nil && strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "unknown field "+field)
		return false
	case err != nil:
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return false
	}

	if err := validation.Struct(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
		return false
	}
	return true
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.TripService.CreateTrip: invalid input: end_at is before start_at"
// becomes "end_at is before start_at".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{domain.ErrInvalidInput, domain.ErrConflict} {
		marker := sentinel.Error() + ": "
		if i := strings.LastIndex(msg, marker); i >= 0 && len(msg) > i+len(marker) {
			return msg[i+len(marker):]
		}
	}
	return msg
}
