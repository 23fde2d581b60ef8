package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/metrics"
	"github.com/schoolrun/backend/internal/notify"
	"github.com/schoolrun/backend/internal/repo"
)

// StartResult is returned by TripService.Start: the new trip id and its
// roster in visiting order.
type StartResult struct {
	TripID  uuid.UUID              `json:"trip_id"`
	Targets []domain.TargetSummary `json:"targets"`
}

// TripService owns the trip state machine: start, per-stop transitions,
// and end. It enforces the one-running-trip-per-bus invariant and the role
// permissions on each operation.
type TripService struct {
	trips      repo.TripRepo
	targets    repo.TargetRepo
	scopes     repo.ScopeRepo
	locations  repo.LocationRepo
	dispatcher notify.Dispatcher
	metrics    *metrics.Collector
	log        *slog.Logger
}

// NewTripService constructs a TripService. The dispatcher is injected, not
// pulled from any global; metrics may be nil.
func NewTripService(
	trips repo.TripRepo,
	targets repo.TargetRepo,
	scopes repo.ScopeRepo,
	locations repo.LocationRepo,
	dispatcher notify.Dispatcher,
	m *metrics.Collector,
	log *slog.Logger,
) *TripService {
	return &TripService{
		trips:      trips,
		targets:    targets,
		scopes:     scopes,
		locations:  locations,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log,
	}
}

// Start opens a trip for the calling driver's bus: creates the trip row,
// seeds targets from the bus roster, orders them nearest-neighbor from the
// school, and notifies the driver, the school admin, and the school's
// teachers. Returns the trip id and the ordered roster.
func (s *TripService) Start(ctx context.Context, driverUserID uuid.UUID, role domain.Role, direction domain.TripDirection, routeName *string) (StartResult, error) {
	switch role {
	case domain.RoleDriver:
		// Only drivers start trips.
	case domain.RoleSuperadmin, domain.RoleAdmin, domain.RoleTeacher, domain.RoleParent, domain.RoleUnknown:
		return StartResult{}, fmt.Errorf("service.TripService.Start: %w", domain.ErrForbiddenRole)
	default:
		return StartResult{}, fmt.Errorf("service.TripService.Start: %w", domain.ErrForbiddenRole)
	}
	if !direction.Valid() {
		return StartResult{}, fmt.Errorf("service.TripService.Start: %w: invalid direction", domain.ErrValidation)
	}

	scope, err := s.scopes.DriverScopeByUser(ctx, driverUserID)
	if err != nil {
		return StartResult{}, fmt.Errorf("service.TripService.Start: %w", err)
	}

	// Friendly pre-check for the common case. The partial unique index on
	// running trips is the actual serialization point: if two starts race
	// past this read, the second insert fails with ErrTripAlreadyRunning.
	if _, running, err := s.trips.FindRunningForBus(ctx, scope.SchoolID, scope.BusID); err != nil {
		return StartResult{}, fmt.Errorf("service.TripService.Start: %w", err)
	} else if running {
		return StartResult{}, fmt.Errorf("service.TripService.Start: %w", domain.ErrTripAlreadyRunning)
	}

	tripID, err := s.trips.CreateWithTargets(ctx, repo.NewTrip{
		SchoolID:      scope.SchoolID,
		BusID:         scope.BusID,
		DriverID:      scope.DriverID,
		Direction:     direction,
		RouteName:     routeName,
		StartedByUser: driverUserID,
	})
	if err != nil {
		return StartResult{}, fmt.Errorf("service.TripService.Start: %w", err)
	}

	s.orderRoute(ctx, tripID, scope.SchoolID)

	roster, err := s.targets.List(ctx, tripID)
	if err != nil {
		return StartResult{}, fmt.Errorf("service.TripService.Start: %w", err)
	}

	s.metrics.TripStarted()
	s.notifySchoolStaff(ctx, scope.SchoolID, scope.DriverID, notify.Notification{
		Title:    "Trip started",
		Body:     fmt.Sprintf("A %s trip has started.", direction),
		Type:     "trip.start",
		Category: "trip",
		Channels: notify.Channels{InApp: true, Push: true},
		Data:     map[string]any{"trip_id": tripID.String(), "direction": string(direction)},
	})

	return StartResult{TripID: tripID, Targets: roster}, nil
}

// orderRoute computes and persists the nearest-neighbor stop order.
// Degraded mode: when the school has no registered coordinate or no target
// carries one, ordering is skipped and targets keep insertion order. That
// is a logged condition, never an error.
func (s *TripService) orderRoute(ctx context.Context, tripID, schoolID uuid.UUID) {
	origin, err := s.scopes.SchoolCoords(ctx, schoolID)
	if err != nil {
		s.log.ErrorContext(ctx, "route ordering skipped", "trip_id", tripID, "error", err)
		return
	}

	routeTargets, err := s.targets.ForOrdering(ctx, tripID)
	if err != nil {
		s.log.ErrorContext(ctx, "route ordering skipped", "trip_id", tripID, "error", err)
		return
	}

	if origin == nil || len(routeTargets) == 0 {
		s.log.InfoContext(ctx, "route ordering unavailable, keeping insertion order",
			"trip_id", tripID, "has_origin", origin != nil, "targets", len(routeTargets))
		return
	}

	ordered := OrderTargets(*origin, routeTargets)
	if err := s.targets.UpdateOrder(ctx, tripID, targetOrders(ordered)); err != nil {
		s.log.ErrorContext(ctx, "persisting stop order failed", "trip_id", tripID, "error", err)
	}
}

// UpdateTargetStatus records the driver's per-stop action and its audit
// event atomically, then notifies the parent (picked/dropped only, in-app
// only) and the school staff.
//
// A target already in a terminal state is updated again without complaint;
// the one-way transition is a caller contract, not a database guard.
func (s *TripService) UpdateTargetStatus(ctx context.Context, driverUserID uuid.UUID, role domain.Role, tripID, targetID uuid.UUID, status domain.TargetStatus) error {
	switch role {
	case domain.RoleDriver:
	case domain.RoleSuperadmin, domain.RoleAdmin, domain.RoleTeacher, domain.RoleParent, domain.RoleUnknown:
		return fmt.Errorf("service.TripService.UpdateTargetStatus: %w", domain.ErrForbiddenRole)
	default:
		return fmt.Errorf("service.TripService.UpdateTargetStatus: %w", domain.ErrForbiddenRole)
	}
	if !status.Terminal() {
		return fmt.Errorf("service.TripService.UpdateTargetStatus: %w: invalid status", domain.ErrValidation)
	}

	found, err := s.targets.UpdateStatus(ctx, tripID, targetID, status)
	if err != nil {
		return fmt.Errorf("service.TripService.UpdateTargetStatus: %w", err)
	}
	if !found {
		// Missing target and wrong-trip target answer identically so a
		// probing caller cannot learn whether a foreign trip id exists.
		return fmt.Errorf("service.TripService.UpdateTargetStatus: %w", domain.ErrTargetNotFound)
	}

	s.notifyTargetAction(ctx, tripID, targetID, status)
	return nil
}

// notifyTargetAction fans out the stop-action notifications. All of it is
// best-effort: the status change has already committed.
func (s *TripService) notifyTargetAction(ctx context.Context, tripID, targetID uuid.UUID, status domain.TargetStatus) {
	info, err := s.scopes.ParentForTarget(ctx, tripID, targetID)
	if err != nil {
		s.log.ErrorContext(ctx, "target notification lookup failed",
			"trip_id", tripID, "target_id", targetID, "error", err)
		return
	}

	verb := map[domain.TargetStatus]string{
		domain.TargetPicked:  "picked up",
		domain.TargetDropped: "dropped off",
		domain.TargetSkipped: "skipped",
	}[status]

	// Parents hear about their own child, and only for picked/dropped.
	if info.ParentUserID != nil && status != domain.TargetSkipped {
		s.notifyOne(ctx, notify.Notification{
			UserID:   *info.ParentUserID,
			Title:    "Bus update",
			Body:     fmt.Sprintf("%s was %s.", info.StudentName, verb),
			Type:     "trip." + string(status),
			Category: "trip",
			Channels: notify.Channels{InApp: true},
			Data:     map[string]any{"trip_id": tripID.String(), "target_id": targetID.String()},
		})
	}

	s.notifySchoolStaff(ctx, info.SchoolID, uuid.Nil, notify.Notification{
		Title:    "Stop update",
		Body:     fmt.Sprintf("%s was %s.", info.StudentName, verb),
		Type:     "trip." + string(status),
		Category: "trip",
		Channels: notify.Channels{InApp: true},
		Data:     map[string]any{"trip_id": tripID.String(), "target_id": targetID.String()},
	})
}

// End closes a trip. Drivers, the school admin, and superadmins may end a
// trip; ending an already-ended trip is treated as a normal update.
func (s *TripService) End(ctx context.Context, userID uuid.UUID, role domain.Role, tripID uuid.UUID) error {
	switch role {
	case domain.RoleDriver, domain.RoleAdmin, domain.RoleSuperadmin:
	case domain.RoleTeacher, domain.RoleParent, domain.RoleUnknown:
		return fmt.Errorf("service.TripService.End: %w", domain.ErrForbiddenRole)
	default:
		return fmt.Errorf("service.TripService.End: %w", domain.ErrForbiddenRole)
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return fmt.Errorf("service.TripService.End: %w", err)
	}

	if err := s.trips.End(ctx, tripID, userID); err != nil {
		return fmt.Errorf("service.TripService.End: %w", err)
	}

	s.metrics.TripEnded()
	s.notifySchoolStaff(ctx, trip.SchoolID, trip.DriverID, notify.Notification{
		Title:    "Trip ended",
		Body:     fmt.Sprintf("The %s trip has ended.", trip.Direction),
		Type:     "trip.end",
		Category: "trip",
		Channels: notify.Channels{InApp: true, Push: true},
		Data:     map[string]any{"trip_id": tripID.String()},
	})
	return nil
}

// List returns the caller's role-scoped trip history. Roles with no trip
// history of their own get an empty list, not an error.
func (s *TripService) List(ctx context.Context, userID uuid.UUID, role domain.Role, f domain.TripListFilter) ([]domain.Trip, error) {
	var (
		trips []domain.Trip
		err   error
	)
	switch role {
	case domain.RoleDriver:
		trips, err = s.trips.ListByDriverUser(ctx, userID, f)
	case domain.RoleAdmin:
		trips, err = s.trips.ListBySchoolUser(ctx, userID, f)
	case domain.RoleParent:
		trips, err = s.trips.ListByParentUser(ctx, userID, f)
	case domain.RoleSuperadmin, domain.RoleTeacher, domain.RoleUnknown:
		return []domain.Trip{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service.TripService.List: %w", err)
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return trips, nil
}

// Get returns the trip detail: the trip row, its roster, and the latest
// known position (nil when no ping has arrived yet).
func (s *TripService) Get(ctx context.Context, tripID uuid.UUID) (domain.TripDetail, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.TripDetail{}, fmt.Errorf("service.TripService.Get: %w", err)
	}

	targets, err := s.targets.List(ctx, tripID)
	if err != nil {
		return domain.TripDetail{}, fmt.Errorf("service.TripService.Get: %w", err)
	}

	detail := domain.TripDetail{Trip: trip, Targets: targets}
	loc, err := s.locations.Latest(ctx, tripID)
	switch {
	case err == nil:
		detail.Position = &loc
	case errors.Is(err, domain.ErrNotFound):
		// No pings yet.
	default:
		return domain.TripDetail{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	return detail, nil
}

// notifyOne dispatches a single notification, logging failures.
func (s *TripService) notifyOne(ctx context.Context, n notify.Notification) {
	if err := s.dispatcher.Notify(ctx, n); err != nil {
		s.log.ErrorContext(ctx, "notification dispatch failed",
			"user_id", n.UserID, "type", n.Type, "error", err)
	}
}

// notifySchoolStaff notifies the school admin, the school's teachers, and,
// when driverID is set, the driver. The template n supplies everything but
// the recipient.
func (s *TripService) notifySchoolStaff(ctx context.Context, schoolID, driverID uuid.UUID, n notify.Notification) {
	if adminUserID, err := s.scopes.AdminUserIDBySchool(ctx, schoolID); err != nil {
		s.log.ErrorContext(ctx, "admin lookup failed", "school_id", schoolID, "error", err)
	} else {
		n.UserID = adminUserID
		s.notifyOne(ctx, n)
	}

	if teacherIDs, err := s.scopes.TeacherUserIDsBySchool(ctx, schoolID); err != nil {
		s.log.ErrorContext(ctx, "teacher lookup failed", "school_id", schoolID, "error", err)
	} else {
		for _, id := range teacherIDs {
			n.UserID = id
			s.notifyOne(ctx, n)
		}
	}

	if driverID != uuid.Nil {
		if driverUserID, err := s.scopes.DriverUserIDByDriver(ctx, driverID); err != nil {
			s.log.ErrorContext(ctx, "driver lookup failed", "driver_id", driverID, "error", err)
		} else {
			n.UserID = driverUserID
			s.notifyOne(ctx, n)
		}
	}
}
