package domain

import (
	"time"

	"github.com/google/uuid"
)

// TargetStatus tracks whether a stop has been served.
// Transitions are one-way: pending → picked | dropped | skipped.
// Re-patching a terminal target is not guarded here; callers own that
// contract (see the lifecycle service tests, which pin the behavior).
type TargetStatus string

const (
	TargetPending TargetStatus = "pending"
	TargetPicked  TargetStatus = "picked"
	TargetDropped TargetStatus = "dropped"
	TargetSkipped TargetStatus = "skipped"
)

// Valid reports whether s is a recognised target status.
func (s TargetStatus) Valid() bool {
	switch s {
	case TargetPending, TargetPicked, TargetDropped, TargetSkipped:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal (acted) status.
func (s TargetStatus) Terminal() bool {
	return s.Valid() && s != TargetPending
}

// TargetKind says which end of the journey the stop coordinate refers to.
// Currently every seeded target is a home stop.
type TargetKind string

const (
	TargetKindHome   TargetKind = "home"
	TargetKindSchool TargetKind = "school"
)

// TripTarget is one student stop within a trip.
// Coordinates are resolved at seeding time from the parent profile, falling
// back to the student profile, and may be nil when neither has an address.
// OrderIndex is nil until the route optimizer has run.
type TripTarget struct {
	ID         uuid.UUID    `json:"target_id"`
	TripID     uuid.UUID    `json:"trip_id"`
	StudentID  uuid.UUID    `json:"student_id"`
	Kind       TargetKind   `json:"target_kind"`
	Lat        *float64     `json:"lat"`
	Lng        *float64     `json:"lng"`
	Status     TargetStatus `json:"status"`
	OrderIndex *int         `json:"order_index"`
	ActedAt    *time.Time   `json:"acted_at,omitempty"`
	CreatedAt  time.Time    `json:"-"`
}

// TargetSummary is the roster view of a target returned by trip detail and
// start responses: target plus the student's display name.
type TargetSummary struct {
	TargetID   uuid.UUID    `json:"target_id"`
	StudentID  uuid.UUID    `json:"student_id"`
	Name       string       `json:"name"`
	Status     TargetStatus `json:"status"`
	OrderIndex *int         `json:"order_index"`
	Lat        *float64     `json:"lat"`
	Lng        *float64     `json:"lng"`
}
