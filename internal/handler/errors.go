package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/schoolrun/backend/internal/domain"
)

// errorResponse is the wire shape every failed request returns:
// {"success":false,"message":"<stable code>"}. The message is a machine
// code, not prose; clients branch on it.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Success: false, Message: code})
}

// writeServiceError maps a service-layer error onto the wire. Domain
// sentinels become stable 4xx codes; anything unrecognised is a 500 with the
// details kept server-side in the log.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrForbiddenRole):
		writeError(w, http.StatusBadRequest, "forbidden")
	case errors.Is(err, domain.ErrScopeNotFound):
		writeError(w, http.StatusBadRequest, "driver_scope_not_found")
	case errors.Is(err, domain.ErrTripAlreadyRunning):
		writeError(w, http.StatusBadRequest, "trip_already_running")
	case errors.Is(err, domain.ErrTargetNotFound):
		writeError(w, http.StatusBadRequest, "target_not_found")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		s.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}
