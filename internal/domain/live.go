package domain

import (
	"time"

	"github.com/google/uuid"
)

// LiveTrip is one row of the school-level live view: a running trip with
// its latest known position and the count of stops still pending.
// Position fields are nil until the first ping arrives.
type LiveTrip struct {
	TripID           uuid.UUID     `json:"trip_id"`
	BusID            uuid.UUID     `json:"bus_id"`
	BusName          *string       `json:"bus_name"`
	DriverID         uuid.UUID     `json:"driver_id"`
	Direction        TripDirection `json:"direction"`
	StartTime        time.Time     `json:"start_time"`
	Lat              *float64      `json:"lat"`
	Lng              *float64      `json:"lng"`
	SpeedKPH         *float64      `json:"speed_kph"`
	RecordedAt       *time.Time    `json:"recorded_at"`
	RemainingPending int           `json:"remaining_pending"`
}

// ParentLiveView is the single-entry live view returned to a parent: the
// trip currently serving their child's bus, with the school's and the
// parent's own coordinates for client-side distance rendering.
type ParentLiveView struct {
	TripID     uuid.UUID     `json:"trip_id"`
	BusID      uuid.UUID     `json:"bus_id"`
	Direction  TripDirection `json:"direction"`
	Lat        *float64      `json:"lat"`
	Lng        *float64      `json:"lng"`
	RecordedAt *time.Time    `json:"recorded_at"`
	SchoolLat  *float64      `json:"school_lat"`
	SchoolLng  *float64      `json:"school_lng"`
	HomeLat    *float64      `json:"home_lat"`
	HomeLng    *float64      `json:"home_lng"`
}

// TripDetail is the supplemented trip detail view: the trip row plus its
// target roster and last known position.
type TripDetail struct {
	Trip     Trip            `json:"trip"`
	Targets  []TargetSummary `json:"targets"`
	Position *TripLocation   `json:"position,omitempty"`
}
