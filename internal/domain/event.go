package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripEventType enumerates the audit trail entry kinds. Events are written
// alongside every state transition, never on plain location ingestion.
type TripEventType string

const (
	EventStart   TripEventType = "start"
	EventEnd     TripEventType = "end"
	EventPicked  TripEventType = "picked"
	EventDropped TripEventType = "dropped"
	EventSkipped TripEventType = "skipped"
)

// TripEvent is one append-only audit trail entry for a trip.
// Meta carries free-form context such as the target id or direction.
type TripEvent struct {
	ID         uuid.UUID      `json:"id"`
	TripID     uuid.UUID      `json:"trip_id"`
	Type       TripEventType  `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Meta       map[string]any `json:"meta,omitempty"`
}
