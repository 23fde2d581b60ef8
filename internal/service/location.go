package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/metrics"
	"github.com/schoolrun/backend/internal/publisher"
	"github.com/schoolrun/backend/internal/repo"
	"github.com/schoolrun/backend/internal/tasks"
)

// ReminderEvaluator is the downstream hook the ingestion pipeline hands
// each persisted batch to. It never reports errors back.
type ReminderEvaluator interface {
	Evaluate(ctx context.Context, tripID uuid.UUID, points []domain.LocationPoint)
}

// LocationService is the GPS ingestion pipeline: persist the batch, return
// to the caller, and kick off reminder evaluation plus position publishing
// as detached background tasks.
type LocationService struct {
	locations repo.LocationRepo
	trips     repo.TripRepo
	evaluator ReminderEvaluator
	runner    tasks.Submitter
	pub       publisher.PositionPublisher // nil disables publishing
	metrics   *metrics.Collector
	log       *slog.Logger
}

// NewLocationService constructs a LocationService. pub may be nil when no
// message bus is configured; metrics may be nil.
func NewLocationService(
	locations repo.LocationRepo,
	trips repo.TripRepo,
	evaluator ReminderEvaluator,
	runner tasks.Submitter,
	pub publisher.PositionPublisher,
	m *metrics.Collector,
	log *slog.Logger,
) *LocationService {
	return &LocationService{
		locations: locations,
		trips:     trips,
		evaluator: evaluator,
		runner:    runner,
		pub:       pub,
		metrics:   m,
		log:       log,
	}
}

// AddLocations persists a batch of pings for a trip and returns the count
// inserted. The response is sent as soon as the batch is durable; reminder
// evaluation runs detached and its failures never reach the caller.
//
// Beyond the role check, the trip id is not verified against the calling
// driver's own bus — any authenticated driver can post to any trip id.
// This mirrors the documented API contract and is pinned by a test; closing
// the gap is a product decision, not a silent fix.
func (s *LocationService) AddLocations(ctx context.Context, driverUserID uuid.UUID, role domain.Role, tripID uuid.UUID, points []domain.LocationPoint) (int, error) {
	switch role {
	case domain.RoleDriver:
	case domain.RoleSuperadmin, domain.RoleAdmin, domain.RoleTeacher, domain.RoleParent, domain.RoleUnknown:
		return 0, fmt.Errorf("service.LocationService.AddLocations: %w", domain.ErrForbiddenRole)
	default:
		return 0, fmt.Errorf("service.LocationService.AddLocations: %w", domain.ErrForbiddenRole)
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("service.LocationService.AddLocations: %w: at least one point required", domain.ErrValidation)
	}

	start := time.Now()
	inserted, err := s.locations.InsertBatch(ctx, tripID, points)
	if err != nil {
		return 0, fmt.Errorf("service.LocationService.AddLocations: %w", err)
	}
	s.metrics.LocationsInserted(inserted, time.Since(start))

	batch := make([]domain.LocationPoint, len(points))
	copy(batch, points)

	s.runner.Submit("reminder-evaluation", func(ctx context.Context) error {
		s.evaluator.Evaluate(ctx, tripID, batch)
		return nil
	})

	if s.pub != nil {
		s.runner.Submit("position-publish", func(ctx context.Context) error {
			return s.publishLatest(ctx, tripID, batch)
		})
	}

	return inserted, nil
}

// publishLatest pushes the batch's most recent point to the message bus.
// Runs off the request path; the trip lookup for the subject happens here
// rather than in the ingestion hot path.
func (s *LocationService) publishLatest(ctx context.Context, tripID uuid.UUID, points []domain.LocationPoint) error {
	latest := latestPoint(points)

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return err
	}

	recordedAt := time.Now()
	if latest.RecordedAt != nil {
		recordedAt = *latest.RecordedAt
	}
	return s.pub.PublishPosition(publisher.Position{
		TripID:     tripID,
		SchoolID:   trip.SchoolID,
		BusID:      trip.BusID,
		Lat:        latest.Lat,
		Lng:        latest.Lng,
		SpeedKPH:   latest.SpeedKPH,
		Heading:    latest.Heading,
		RecordedAt: recordedAt,
	})
}

// latestPoint picks the point the database will report as the trip's
// current position: greatest recorded_at, with untimed points resolved to
// one shared ingestion timestamp, mirroring the insert's
// COALESCE(recorded_at, now()).
func latestPoint(points []domain.LocationPoint) domain.LocationPoint {
	ingested := time.Now()
	at := func(p domain.LocationPoint) time.Time {
		if p.RecordedAt == nil {
			return ingested
		}
		return *p.RecordedAt
	}

	best := points[0]
	for _, p := range points[1:] {
		if at(p).After(at(best)) {
			best = p
		}
	}
	return best
}
