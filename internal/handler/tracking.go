package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/middleware"
)

// LiveView handles GET /tracking/live.
// Every role gets an array of live rows: staff see their school's running
// trips, parents at most their own bus's entry. The school_id query
// parameter is honoured only for superadmins; everyone else is pinned to
// the school resolved from their own identity.
func (s *Server) LiveView(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var schoolID *uuid.UUID
	if v := r.URL.Query().Get("school_id"); v != "" {
		parsed, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error")
			return
		}
		schoolID = &parsed
	}

	view, err := s.live.View(r.Context(), id.UserID, id.Role, schoolID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if id.Role == domain.RoleParent {
		// Parents share the array shape: at most one row, empty when the
		// bus is idle. The single-object form lives on /tracking/live/mine.
		rows := []domain.ParentLiveView{}
		if view.Parent != nil {
			rows = append(rows, *view.Parent)
		}
		writeJSON(w, http.StatusOK, rows)
		return
	}
	writeJSON(w, http.StatusOK, view.Trips)
}

// LiveMine handles GET /tracking/live/mine. Parent only.
func (s *Server) LiveMine(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mine, err := s.live.Mine(r.Context(), id.UserID, id.Role)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mine)
}
