// Package publisher streams live bus positions to NATS so dashboards can
// subscribe instead of polling the live-view endpoint. Publishing is
// best-effort: the ingestion path never depends on it.
package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Position is the payload published per ingested batch: the latest point
// of the batch for one trip.
type Position struct {
	TripID     uuid.UUID `json:"trip_id"`
	SchoolID   uuid.UUID `json:"school_id"`
	BusID      uuid.UUID `json:"bus_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	SpeedKPH   *float64  `json:"speed_kph,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PositionPublisher publishes Position updates. The location pipeline
// depends on this interface so tests can capture publishes in memory.
type PositionPublisher interface {
	PublishPosition(p Position) error
}

// NATSPublisher publishes positions to subjects of the form
// tracking.<school_id>.trip.<trip_id>.position.
type NATSPublisher struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewNATSPublisher connects to the NATS server at url, with reconnect
// logging wired up.
func NewNATSPublisher(url string, log *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("schoolrun-tracking"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publisher.NewNATSPublisher: %w", err)
	}
	return &NATSPublisher{nc: nc, log: log}, nil
}

// PublishPosition serialises p and publishes it to the trip's subject.
func (p *NATSPublisher) PublishPosition(pos Position) error {
	subject := fmt.Sprintf("tracking.%s.trip.%s.position", pos.SchoolID, pos.TripID)

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("publisher.PublishPosition: marshal: %w", err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publisher.PublishPosition: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}
