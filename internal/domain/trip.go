// Package domain contains the core data types for the school-run tracking
// backend. This package has no dependencies beyond uuid and is imported by
// every other internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripDirection says whether a trip collects students (pickup) or returns
// them home (dropoff). It also decides which reminder radius applies.
type TripDirection string

const (
	DirectionPickup  TripDirection = "pickup"
	DirectionDropoff TripDirection = "dropoff"
)

// Valid reports whether d is one of the two recognised directions.
func (d TripDirection) Valid() bool {
	return d == DirectionPickup || d == DirectionDropoff
}

// TripStatus is the trip state machine: running → ended. Single forward
// edge, no resumption.
type TripStatus string

const (
	TripRunning TripStatus = "running"
	TripEnded   TripStatus = "ended"
)

// Trip represents one pickup or dropoff run for one bus.
// A trip is the top-level aggregate; targets, locations, and events belong
// to it and are mutated by nothing else. At most one running trip may exist
// per (school, bus) at a time — backed by a partial unique index.
type Trip struct {
	ID            uuid.UUID     `json:"id"`
	SchoolID      uuid.UUID     `json:"school_id"`
	BusID         uuid.UUID     `json:"bus_id"`
	DriverID      uuid.UUID     `json:"driver_id"`
	Direction     TripDirection `json:"direction"`
	Status        TripStatus    `json:"status"`
	RouteName     *string       `json:"route_name,omitempty"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       *time.Time    `json:"end_time,omitempty"` // nil while running
	StartedByUser uuid.UUID     `json:"started_by_user_id"`
	EndedByUser   *uuid.UUID    `json:"ended_by_user_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TripListFilter narrows role-scoped trip history queries.
// Nil fields mean "no filter".
type TripListFilter struct {
	Status    *TripStatus
	Direction *TripDirection
	// Cursor is the id of the last trip of the previous page; results are
	// trips created strictly before it.
	Cursor *uuid.UUID
	Limit  int
}

// EffectiveLimit clamps the requested page size to [1,100], defaulting to 20.
func (f TripListFilter) EffectiveLimit() int {
	if f.Limit < 1 {
		return 20
	}
	if f.Limit > 100 {
		return 100
	}
	return f.Limit
}
