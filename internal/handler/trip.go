package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/middleware"
)

// startTripRequest is the body of POST /trips/start.
type startTripRequest struct {
	Direction string  `json:"direction" validate:"required,oneof=pickup dropoff"`
	RouteName *string `json:"route_name" validate:"omitempty,max=120"`
}

// addLocationsRequest is the body of POST /trips/{tripID}/locations.
// Batches are capped well below the body-size middleware limit.
type addLocationsRequest struct {
	Points []locationPoint `json:"points" validate:"required,min=1,max=500,dive"`
}

type locationPoint struct {
	Lat        *float64   `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng        *float64   `json:"lng" validate:"required,gte=-180,lte=180"`
	RecordedAt *time.Time `json:"recorded_at"`
	SpeedKPH   *float64   `json:"speed_kph" validate:"omitempty,gte=0"`
	Heading    *float64   `json:"heading" validate:"omitempty,gte=0,lt=360"`
	AccuracyM  *float64   `json:"accuracy_m" validate:"omitempty,gte=0"`
}

// updateTargetRequest is the body of PATCH /trips/{tripID}/targets/{targetID}.
// "pending" is deliberately absent: a stop cannot be un-acted.
type updateTargetRequest struct {
	Status string `json:"status" validate:"required,oneof=picked dropped skipped"`
}

// StartTrip handles POST /trips/start.
func (s *Server) StartTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req startTripRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.trips.Start(r.Context(), id.UserID, id.Role, domain.TripDirection(req.Direction), req.RouteName)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data": map[string]any{
			"trip_id": result.TripID,
			"targets": result.Targets,
		},
	})
}

// AddLocations handles POST /trips/{tripID}/locations.
func (s *Server) AddLocations(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tripID, ok := s.pathUUID(w, r, "tripID")
	if !ok {
		return
	}

	var req addLocationsRequest
	if !s.decode(w, r, &req) {
		return
	}

	points := make([]domain.LocationPoint, len(req.Points))
	for i, p := range req.Points {
		points[i] = domain.LocationPoint{
			Lat:        *p.Lat,
			Lng:        *p.Lng,
			RecordedAt: p.RecordedAt,
			SpeedKPH:   p.SpeedKPH,
			Heading:    p.Heading,
			AccuracyM:  p.AccuracyM,
		}
	}

	inserted, err := s.locations.AddLocations(r.Context(), id.UserID, id.Role, tripID, points)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"inserted": inserted})
}

// UpdateTargetStatus handles PATCH /trips/{tripID}/targets/{targetID}.
func (s *Server) UpdateTargetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tripID, ok := s.pathUUID(w, r, "tripID")
	if !ok {
		return
	}
	targetID, ok := s.pathUUID(w, r, "targetID")
	if !ok {
		return
	}

	var req updateTargetRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.trips.UpdateTargetStatus(r.Context(), id.UserID, id.Role, tripID, targetID, domain.TargetStatus(req.Status))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

// EndTrip handles POST /trips/{tripID}/end.
func (s *Server) EndTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tripID, ok := s.pathUUID(w, r, "tripID")
	if !ok {
		return
	}

	if err := s.trips.End(r.Context(), id.UserID, id.Role, tripID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ended": true})
}

// ListTrips handles GET /trips.
// Supports ?status=, ?direction=, ?cursor= (last trip id of the previous
// page) and ?limit= (default 20, max 100) query parameters.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	f, ok := s.listFilter(w, r)
	if !ok {
		return
	}

	trips, err := s.trips.List(r.Context(), id.UserID, id.Role, f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": trips})
}

// GetTrip handles GET /trips/{tripID}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFrom(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tripID, ok := s.pathUUID(w, r, "tripID")
	if !ok {
		return
	}

	detail, err := s.trips.Get(r.Context(), tripID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": detail})
}

// --- request helpers --------------------------------------------------------

// decode reads and validates a JSON body into dst, writing a validation_error
// response and returning false on any failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error")
		return false
	}
	return true
}

// pathUUID parses the named chi URL parameter as a UUID.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error")
		return uuid.Nil, false
	}
	return id, true
}

// listFilter assembles a TripListFilter from query parameters.
func (s *Server) listFilter(w http.ResponseWriter, r *http.Request) (domain.TripListFilter, bool) {
	var f domain.TripListFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		st := domain.TripStatus(v)
		if st != domain.TripRunning && st != domain.TripEnded {
			writeError(w, http.StatusBadRequest, "validation_error")
			return f, false
		}
		f.Status = &st
	}
	if v := q.Get("direction"); v != "" {
		dir := domain.TripDirection(v)
		if !dir.Valid() {
			writeError(w, http.StatusBadRequest, "validation_error")
			return f, false
		}
		f.Direction = &dir
	}
	if v := q.Get("cursor"); v != "" {
		cursor, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error")
			return f, false
		}
		f.Cursor = &cursor
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error")
			return f, false
		}
		f.Limit = limit
	}
	return f, true
}
