package service

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/geo"
	"github.com/schoolrun/backend/internal/metrics"
	"github.com/schoolrun/backend/internal/notify"
	"github.com/schoolrun/backend/internal/repo"
)

// Default reminder radii, applied when a subscription leaves them unset.
const (
	DefaultPickupRadiusKM  = 5.0
	DefaultDropoffRadiusKM = 10.0
)

// DefaultReminderCooldown is the minimum gap between two reminders of the
// same type to the same parent about the same student.
const DefaultReminderCooldown = 15 * time.Minute

// ReminderService evaluates proximity reminders for ingested location
// batches. It runs exclusively on the background task runner and never
// raises to its caller: every failure is terminal-local and logged.
type ReminderService struct {
	reminders  repo.ReminderRepo
	trips      repo.TripRepo
	dispatcher notify.Dispatcher
	cooldown   time.Duration
	metrics    *metrics.Collector
	log        *slog.Logger
}

// NewReminderService constructs a ReminderService. A non-positive cooldown
// falls back to DefaultReminderCooldown.
func NewReminderService(
	reminders repo.ReminderRepo,
	trips repo.TripRepo,
	dispatcher notify.Dispatcher,
	cooldown time.Duration,
	m *metrics.Collector,
	log *slog.Logger,
) *ReminderService {
	if cooldown <= 0 {
		cooldown = DefaultReminderCooldown
	}
	return &ReminderService{
		reminders:  reminders,
		trips:      trips,
		dispatcher: dispatcher,
		cooldown:   cooldown,
		metrics:    m,
		log:        log,
	}
}

// Evaluate checks every enabled subscription on the trip against the
// batch. A parent is notified when the bus came within their configured
// radius of the student's home — measured against the closest point of the
// batch, not the latest, to ride out noisy fixes — and no reminder of the
// same type went out inside the cooldown window.
func (s *ReminderService) Evaluate(ctx context.Context, tripID uuid.UUID, points []domain.LocationPoint) {
	if len(points) == 0 {
		return
	}
	s.metrics.ReminderEvaluated()

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		s.log.ErrorContext(ctx, "reminder evaluation: trip lookup failed",
			"trip_id", tripID, "error", err)
		return
	}

	subs, err := s.reminders.SubscriptionsForTrip(ctx, tripID)
	if err != nil {
		s.log.ErrorContext(ctx, "reminder evaluation: subscription lookup failed",
			"trip_id", tripID, "error", err)
		return
	}

	for _, sub := range subs {
		s.evaluateOne(ctx, trip, sub, points)
	}
}

func (s *ReminderService) evaluateOne(ctx context.Context, trip domain.Trip, sub domain.ReminderSubscription, points []domain.LocationPoint) {
	if sub.Home == nil {
		return
	}

	radiusKM, notifType := radiusForDirection(trip.Direction, sub)

	minKM := math.Inf(1)
	for _, p := range points {
		if d := geo.HaversineKM(sub.Home.Lat, sub.Home.Lng, p.Lat, p.Lng); d < minKM {
			minKM = d
		}
	}
	if minKM > radiusKM {
		return
	}

	onCooldown, err := s.reminders.HasRecentReminder(ctx, sub.ParentUserID, notifType, sub.StudentID, s.cooldown)
	if err != nil {
		s.log.ErrorContext(ctx, "reminder cooldown check failed",
			"trip_id", trip.ID, "student_id", sub.StudentID, "error", err)
		return
	}
	if onCooldown {
		s.metrics.ReminderSuppressed()
		return
	}

	distKM := math.Round(minKM*10) / 10
	err = s.dispatcher.Notify(ctx, notify.Notification{
		UserID:   sub.ParentUserID,
		Title:    "Bus approaching",
		Body:     reminderBody(trip.Direction, distKM),
		Type:     notifType,
		Category: "trip",
		Channels: notify.Channels{InApp: true, Push: true},
		Data: map[string]any{
			"trip_id":     trip.ID.String(),
			"student_id":  sub.StudentID.String(),
			"distance_km": distKM,
		},
	})
	if err != nil {
		s.log.ErrorContext(ctx, "reminder dispatch failed",
			"trip_id", trip.ID, "student_id", sub.StudentID, "error", err)
		return
	}
	s.metrics.ReminderSent()
}

// radiusForDirection picks the effective radius and notification type for
// the trip direction.
func radiusForDirection(dir domain.TripDirection, sub domain.ReminderSubscription) (float64, string) {
	if dir == domain.DirectionPickup {
		if sub.PickupRadiusKM != nil {
			return *sub.PickupRadiusKM, "reminder.pickup"
		}
		return DefaultPickupRadiusKM, "reminder.pickup"
	}
	if sub.DropoffRadiusKM != nil {
		return *sub.DropoffRadiusKM, "reminder.dropoff"
	}
	return DefaultDropoffRadiusKM, "reminder.dropoff"
}

func reminderBody(dir domain.TripDirection, distKM float64) string {
	km := strconv.FormatFloat(distKM, 'f', -1, 64)
	if dir == domain.DirectionPickup {
		return "The bus is about " + km + " km away for pickup."
	}
	return "The bus is about " + km + " km from home."
}
