package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/repo"
)

// LiveView is the role-scoped live snapshot. Exactly one of the two fields
// is populated: Trips for staff roles, Parent for the parent role (nil when
// no trip is serving their child's bus).
type LiveView struct {
	Trips  []domain.LiveTrip
	Parent *domain.ParentLiveView
}

// LiveService assembles role-scoped snapshots of currently running trips.
type LiveService struct {
	live   repo.LiveRepo
	scopes repo.ScopeRepo
	log    *slog.Logger
}

// NewLiveService constructs a LiveService.
func NewLiveService(live repo.LiveRepo, scopes repo.ScopeRepo, log *slog.Logger) *LiveService {
	return &LiveService{live: live, scopes: scopes, log: log}
}

// View returns the live snapshot for the caller.
//
// The school a non-superadmin sees is always the one resolved from their
// own identity; the school_id query parameter is honoured for superadmins
// only. Callers with no resolvable scope get an empty view, not an error.
func (s *LiveService) View(ctx context.Context, userID uuid.UUID, role domain.Role, schoolID *uuid.UUID) (LiveView, error) {
	switch role {
	case domain.RoleSuperadmin:
		if schoolID == nil {
			return LiveView{Trips: []domain.LiveTrip{}}, nil
		}
		return s.forSchool(ctx, *schoolID)

	case domain.RoleAdmin:
		id, err := s.scopes.SchoolIDByAdminUser(ctx, userID)
		return s.scopedSchool(ctx, id, err)

	case domain.RoleTeacher:
		// Class-level filtering is deliberately out of scope; teachers see
		// their whole school.
		id, err := s.scopes.SchoolIDByTeacherUser(ctx, userID)
		return s.scopedSchool(ctx, id, err)

	case domain.RoleDriver:
		scope, err := s.scopes.DriverScopeByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrScopeNotFound) {
				return LiveView{Trips: []domain.LiveTrip{}}, nil
			}
			return LiveView{}, fmt.Errorf("service.LiveService.View: %w", err)
		}
		// Drivers see the whole school's running trips, not just their bus.
		return s.forSchool(ctx, scope.SchoolID)

	case domain.RoleParent:
		mine, err := s.live.ForParent(ctx, userID)
		if err != nil {
			return LiveView{}, fmt.Errorf("service.LiveService.View: %w", err)
		}
		return LiveView{Parent: mine}, nil

	case domain.RoleUnknown:
		return LiveView{Trips: []domain.LiveTrip{}}, nil
	default:
		return LiveView{Trips: []domain.LiveTrip{}}, nil
	}
}

// Mine returns the parent's single live entry, or nil when no trip is
// currently serving their child's bus. Parent-only.
func (s *LiveService) Mine(ctx context.Context, userID uuid.UUID, role domain.Role) (*domain.ParentLiveView, error) {
	switch role {
	case domain.RoleParent:
	case domain.RoleSuperadmin, domain.RoleAdmin, domain.RoleTeacher, domain.RoleDriver, domain.RoleUnknown:
		return nil, fmt.Errorf("service.LiveService.Mine: %w", domain.ErrForbiddenRole)
	default:
		return nil, fmt.Errorf("service.LiveService.Mine: %w", domain.ErrForbiddenRole)
	}

	mine, err := s.live.ForParent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service.LiveService.Mine: %w", err)
	}
	return mine, nil
}

// scopedSchool folds a school-resolution result into a live view: a scope
// miss yields an empty view.
func (s *LiveService) scopedSchool(ctx context.Context, schoolID uuid.UUID, err error) (LiveView, error) {
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LiveView{Trips: []domain.LiveTrip{}}, nil
		}
		return LiveView{}, fmt.Errorf("service.LiveService.View: %w", err)
	}
	return s.forSchool(ctx, schoolID)
}

func (s *LiveService) forSchool(ctx context.Context, schoolID uuid.UUID) (LiveView, error) {
	trips, err := s.live.ForSchool(ctx, schoolID)
	if err != nil {
		return LiveView{}, fmt.Errorf("service.LiveService.View: %w", err)
	}
	if trips == nil {
		trips = []domain.LiveTrip{}
	}
	return LiveView{Trips: trips}, nil
}
