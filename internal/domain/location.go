package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripLocation is one GPS ping for a trip. Append-only; the current
// position of a trip is the ping with the latest RecordedAt.
type TripLocation struct {
	ID         uuid.UUID `json:"id"`
	TripID     uuid.UUID `json:"trip_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	SpeedKPH   *float64  `json:"speed_kph,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
}

// LocationPoint is one ingested GPS sample before persistence.
// RecordedAt is optional; the repo substitutes ingestion time when nil.
type LocationPoint struct {
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	SpeedKPH   *float64   `json:"speed_kph,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	AccuracyM  *float64   `json:"accuracy_m,omitempty"`
}

// Coordinate is a bare WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
