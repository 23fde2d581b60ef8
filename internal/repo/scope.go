package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schoolrun/backend/internal/domain"
)

// ParentTargetInfo resolves who to notify when a target is acted on.
type ParentTargetInfo struct {
	// ParentUserID is nil when the student has no linked parent account.
	ParentUserID *uuid.UUID
	StudentName  string
	SchoolID     uuid.UUID
}

// ScopeRepo resolves caller identities to school/bus/driver associations
// and looks up the users a transition should notify. These are reads into
// roster tables owned by the school-management collaborator.
type ScopeRepo interface {
	// DriverScopeByUser resolves the (school, driver, bus) scope for a
	// driver's user id. Returns domain.ErrScopeNotFound when the user is
	// not a driver or has no bus assignment.
	DriverScopeByUser(ctx context.Context, userID uuid.UUID) (domain.DriverScope, error)

	// SchoolIDByAdminUser returns the school administered by the user.
	// Returns domain.ErrNotFound when the user administers no school.
	SchoolIDByAdminUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)

	// SchoolIDByTeacherUser returns the school the user teaches at.
	// Returns domain.ErrNotFound when the user teaches nowhere.
	SchoolIDByTeacherUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)

	// SchoolCoords returns the school's registered coordinate, or nil
	// (no error) when no coordinate is on file.
	SchoolCoords(ctx context.Context, schoolID uuid.UUID) (*domain.Coordinate, error)

	// AdminUserIDBySchool returns the school admin's user id.
	AdminUserIDBySchool(ctx context.Context, schoolID uuid.UUID) (uuid.UUID, error)

	// DriverUserIDByDriver returns the user id behind a driver record.
	DriverUserIDByDriver(ctx context.Context, driverID uuid.UUID) (uuid.UUID, error)

	// TeacherUserIDsBySchool returns the user ids of the school's active
	// teachers.
	TeacherUserIDsBySchool(ctx context.Context, schoolID uuid.UUID) ([]uuid.UUID, error)

	// ParentForTarget resolves the parent and student behind a target.
	// Returns domain.ErrNotFound when the (trip, target) pair matches
	// no row.
	ParentForTarget(ctx context.Context, tripID, targetID uuid.UUID) (ParentTargetInfo, error)
}

type pgScopeRepo struct {
	db db
}

// NewScopeRepo constructs a ScopeRepo backed by the provided db connection.
func NewScopeRepo(db db) ScopeRepo {
	return &pgScopeRepo{db: db}
}

func (r *pgScopeRepo) DriverScopeByUser(ctx context.Context, userID uuid.UUID) (domain.DriverScope, error) {
	const q = `
		SELECT d.school_id, d.id, db.bus_id
		FROM drivers d
		LEFT JOIN driver_buses db ON db.driver_id = d.id
		WHERE d.user_id = @user_id AND d.deleted_at IS NULL
		LIMIT 1`

	var schoolID, driverID, busID pgtype.UUID
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID}).Scan(&schoolID, &driverID, &busID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DriverScope{}, fmt.Errorf("repo.ScopeRepo.DriverScopeByUser: %w", domain.ErrScopeNotFound)
		}
		return domain.DriverScope{}, fmt.Errorf("repo.ScopeRepo.DriverScopeByUser: %w", err)
	}
	// A driver row without a bus assignment is no scope at all.
	if !busID.Valid {
		return domain.DriverScope{}, fmt.Errorf("repo.ScopeRepo.DriverScopeByUser: %w", domain.ErrScopeNotFound)
	}

	return domain.DriverScope{
		SchoolID: uuid.UUID(schoolID.Bytes),
		DriverID: uuid.UUID(driverID.Bytes),
		BusID:    uuid.UUID(busID.Bytes),
	}, nil
}

func (r *pgScopeRepo) SchoolIDByAdminUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT id FROM schools WHERE user_id = @user_id LIMIT 1`

	var id pgtype.UUID
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID}).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("repo.ScopeRepo.SchoolIDByAdminUser: %w", domain.ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("repo.ScopeRepo.SchoolIDByAdminUser: %w", err)
	}
	return uuid.UUID(id.Bytes), nil
}

func (r *pgScopeRepo) SchoolIDByTeacherUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT school_id FROM teachers WHERE user_id = @user_id AND deleted_at IS NULL LIMIT 1`

	var id pgtype.UUID
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID}).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("repo.ScopeRepo.SchoolIDByTeacherUser: %w", domain.ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("repo.ScopeRepo.SchoolIDByTeacherUser: %w", err)
	}
	return uuid.UUID(id.Bytes), nil
}

func (r *pgScopeRepo) SchoolCoords(ctx context.Context, schoolID uuid.UUID) (*domain.Coordinate, error) {
	const q = `SELECT latitude, longitude FROM schools WHERE id = @id`

	var lat, lng pgtype.Float8
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": schoolID}).Scan(&lat, &lng)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repo.ScopeRepo.SchoolCoords: %w", err)
	}
	if !lat.Valid || !lng.Valid {
		return nil, nil
	}
	return &domain.Coordinate{Lat: lat.Float64, Lng: lng.Float64}, nil
}

func (r *pgScopeRepo) AdminUserIDBySchool(ctx context.Context, schoolID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT user_id FROM schools WHERE id = @id LIMIT 1`
	return r.scanUserID(ctx, "AdminUserIDBySchool", q, pgx.NamedArgs{"id": schoolID})
}

func (r *pgScopeRepo) DriverUserIDByDriver(ctx context.Context, driverID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT user_id FROM drivers WHERE id = @id LIMIT 1`
	return r.scanUserID(ctx, "DriverUserIDByDriver", q, pgx.NamedArgs{"id": driverID})
}

func (r *pgScopeRepo) scanUserID(ctx context.Context, op, q string, args pgx.NamedArgs) (uuid.UUID, error) {
	var id pgtype.UUID
	err := r.db.QueryRow(ctx, q, args).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("repo.ScopeRepo.%s: %w", op, domain.ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("repo.ScopeRepo.%s: %w", op, err)
	}
	return uuid.UUID(id.Bytes), nil
}

func (r *pgScopeRepo) TeacherUserIDsBySchool(ctx context.Context, schoolID uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT user_id FROM teachers WHERE school_id = @school_id AND deleted_at IS NULL`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"school_id": schoolID})
	if err != nil {
		return nil, fmt.Errorf("repo.ScopeRepo.TeacherUserIDsBySchool: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repo.ScopeRepo.TeacherUserIDsBySchool: scan: %w", err)
		}
		ids = append(ids, uuid.UUID(id.Bytes))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.ScopeRepo.TeacherUserIDsBySchool: rows: %w", err)
	}
	return ids, nil
}

func (r *pgScopeRepo) ParentForTarget(ctx context.Context, tripID, targetID uuid.UUID) (ParentTargetInfo, error) {
	const q = `
		SELECT s.parent_user_id, s.name, t.school_id
		FROM trip_targets tt
		JOIN trips t ON t.id = tt.trip_id
		JOIN students s ON s.id = tt.student_id
		WHERE tt.trip_id = @trip_id AND tt.id = @target_id
		LIMIT 1`

	var (
		parentUserID pgtype.UUID
		name         string
		schoolID     pgtype.UUID
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID, "target_id": targetID}).
		Scan(&parentUserID, &name, &schoolID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ParentTargetInfo{}, fmt.Errorf("repo.ScopeRepo.ParentForTarget: %w", domain.ErrNotFound)
		}
		return ParentTargetInfo{}, fmt.Errorf("repo.ScopeRepo.ParentForTarget: %w", err)
	}

	info := ParentTargetInfo{StudentName: name, SchoolID: uuid.UUID(schoolID.Bytes)}
	if parentUserID.Valid {
		p := uuid.UUID(parentUserID.Bytes)
		info.ParentUserID = &p
	}
	return info, nil
}
