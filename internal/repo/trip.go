package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schoolrun/backend/internal/domain"
)

// NewTrip carries the fields needed to open a trip.
type NewTrip struct {
	SchoolID      uuid.UUID
	BusID         uuid.UUID
	DriverID      uuid.UUID
	Direction     domain.TripDirection
	RouteName     *string
	StartedByUser uuid.UUID
}

// TripRepo defines the persistence operations for the trip aggregate's
// lifecycle. The service layer depends on this interface, not the concrete
// Postgres implementation, which allows the service to be unit-tested with
// a mock.
type TripRepo interface {
	// CreateWithTargets atomically inserts the trip row, seeds one pending
	// home target per student currently assigned to the bus (coordinates
	// resolved from the parent profile, falling back to the student
	// profile), and writes the start event. Returns the new trip id.
	// Returns domain.ErrTripAlreadyRunning when the partial unique index on
	// running trips rejects the insert.
	CreateWithTargets(ctx context.Context, t NewTrip) (uuid.UUID, error)

	// FindRunningForBus returns the id of the bus's running trip, or
	// ok=false when the bus is idle.
	FindRunningForBus(ctx context.Context, schoolID, busID uuid.UUID) (uuid.UUID, bool, error)

	// GetByID retrieves a trip by primary key.
	// Returns domain.ErrNotFound if no trip with that id exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// End marks the trip ended, stamps end_time and ended_by, and writes
	// the end event, all in one transaction. Ending an already-ended trip
	// is treated as a normal update. Returns domain.ErrNotFound if the
	// trip does not exist.
	End(ctx context.Context, tripID, endedByUser uuid.UUID) error

	// ListByDriverUser returns the trip history of the driver identified
	// by userID, newest first.
	ListByDriverUser(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error)

	// ListBySchoolUser returns the trip history of the school administered
	// by userID, newest first.
	ListBySchoolUser(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error)

	// ListByParentUser returns trips that carried any of the parent's
	// children, newest first.
	ListByParentUser(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback
// isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

func (r *pgTripRepo) CreateWithTargets(ctx context.Context, t NewTrip) (uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repo.TripRepo.CreateWithTargets: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertTrip = `
		INSERT INTO trips (school_id, bus_id, driver_id, direction, status, route_name, start_time, started_by_user_id)
		VALUES (@school_id, @bus_id, @driver_id, @direction, 'running', @route_name, now(), @started_by)
		RETURNING id`

	var id pgtype.UUID
	err = tx.QueryRow(ctx, insertTrip, pgx.NamedArgs{
		"school_id":  t.SchoolID,
		"bus_id":     t.BusID,
		"driver_id":  t.DriverID,
		"direction":  t.Direction,
		"route_name": t.RouteName, // nil becomes NULL
		"started_by": t.StartedByUser,
	}).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return uuid.Nil, fmt.Errorf("repo.TripRepo.CreateWithTargets: %w", domain.ErrTripAlreadyRunning)
		}
		return uuid.Nil, fmt.Errorf("repo.TripRepo.CreateWithTargets: insert trip: %w", err)
	}
	tripID := uuid.UUID(id.Bytes)

	// Seed one pending home target per student riding the bus, resolving
	// stop coordinates from the parent profile first, student profile second.
	const seedTargets = `
		INSERT INTO trip_targets (trip_id, student_id, target_kind, target_lat, target_lng, status)
		SELECT @trip_id, s.id, 'home',
		       COALESCE(p.latitude, s.latitude),
		       COALESCE(p.longitude, s.longitude),
		       'pending'
		FROM student_buses sb
		JOIN students s ON s.id = sb.student_id AND s.school_id = @school_id AND s.deleted_at IS NULL
		LEFT JOIN parents p ON p.user_id = s.parent_user_id AND p.school_id = @school_id
		WHERE sb.school_id = @school_id AND sb.bus_id = @bus_id`

	_, err = tx.Exec(ctx, seedTargets, pgx.NamedArgs{
		"trip_id":   tripID,
		"school_id": t.SchoolID,
		"bus_id":    t.BusID,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("repo.TripRepo.CreateWithTargets: seed targets: %w", err)
	}

	const insertEvent = `
		INSERT INTO trip_events (trip_id, type, meta)
		VALUES (@trip_id, 'start', jsonb_build_object('direction', @direction::text))`

	_, err = tx.Exec(ctx, insertEvent, pgx.NamedArgs{
		"trip_id":   tripID,
		"direction": string(t.Direction),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("repo.TripRepo.CreateWithTargets: start event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("repo.TripRepo.CreateWithTargets: commit: %w", err)
	}
	return tripID, nil
}

func (r *pgTripRepo) FindRunningForBus(ctx context.Context, schoolID, busID uuid.UUID) (uuid.UUID, bool, error) {
	const q = `
		SELECT id FROM trips
		WHERE school_id = @school_id AND bus_id = @bus_id AND status = 'running'
		LIMIT 1`

	var id pgtype.UUID
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"school_id": schoolID, "bus_id": busID}).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("repo.TripRepo.FindRunningForBus: %w", err)
	}
	return uuid.UUID(id.Bytes), true, nil
}

func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `
		SELECT id, school_id, bus_id, driver_id, direction, status, route_name,
		       start_time, end_time, started_by_user_id, ended_by_user_id,
		       created_at, updated_at
		FROM trips
		WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	t, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return t, nil
}

func (r *pgTripRepo) End(ctx context.Context, tripID, endedByUser uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.TripRepo.End: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE trips
		SET status = 'ended', end_time = now(), ended_by_user_id = @ended_by, updated_at = now()
		WHERE id = @id`

	tag, err := tx.Exec(ctx, update, pgx.NamedArgs{"id": tripID, "ended_by": endedByUser})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.End: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.End: %w", domain.ErrNotFound)
	}

	const insertEvent = `INSERT INTO trip_events (trip_id, type) VALUES (@trip_id, 'end')`
	if _, err := tx.Exec(ctx, insertEvent, pgx.NamedArgs{"trip_id": tripID}); err != nil {
		return fmt.Errorf("repo.TripRepo.End: end event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.TripRepo.End: commit: %w", err)
	}
	return nil
}

func (r *pgTripRepo) ListByDriverUser(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error) {
	const where = `t.driver_id = (SELECT id FROM drivers WHERE user_id = @user_id AND deleted_at IS NULL LIMIT 1)`
	return r.list(ctx, "ListByDriverUser", where, userID, f)
}

func (r *pgTripRepo) ListBySchoolUser(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error) {
	const where = `t.school_id = (SELECT id FROM schools WHERE user_id = @user_id LIMIT 1)`
	return r.list(ctx, "ListBySchoolUser", where, userID, f)
}

func (r *pgTripRepo) ListByParentUser(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error) {
	const where = `EXISTS (
		SELECT 1 FROM trip_targets tt
		JOIN students s ON s.id = tt.student_id
		WHERE tt.trip_id = t.id AND s.parent_user_id = @user_id)`
	return r.list(ctx, "ListByParentUser", where, userID, f)
}

// list runs the shared trip-history query with a per-role scope predicate.
// The optional status/direction/cursor filters are appended uniformly.
func (r *pgTripRepo) list(ctx context.Context, op, scopeWhere string, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error) {
	q := `
		SELECT t.id, t.school_id, t.bus_id, t.driver_id, t.direction, t.status, t.route_name,
		       t.start_time, t.end_time, t.started_by_user_id, t.ended_by_user_id,
		       t.created_at, t.updated_at
		FROM trips t
		WHERE ` + scopeWhere

	args := pgx.NamedArgs{"user_id": userID, "limit": f.EffectiveLimit()}
	if f.Status != nil {
		q += ` AND t.status = @status`
		args["status"] = *f.Status
	}
	if f.Direction != nil {
		q += ` AND t.direction = @direction`
		args["direction"] = *f.Direction
	}
	if f.Cursor != nil {
		q += ` AND t.created_at < (SELECT created_at FROM trips WHERE id = @cursor)`
		args["cursor"] = *f.Cursor
	}
	q += ` ORDER BY t.created_at DESC LIMIT @limit`

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.%s: %w", op, err)
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TripRepo.%s: scan: %w", op, err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.%s: rows: %w", op, err)
	}
	return trips, nil
}

// scanTrip maps a single database row into a domain.Trip, handling the
// UUID and nullable column conversions.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t         domain.Trip
		id        pgtype.UUID
		schoolID  pgtype.UUID
		busID     pgtype.UUID
		driverID  pgtype.UUID
		routeName pgtype.Text
		endTime   pgtype.Timestamptz
		startedBy pgtype.UUID
		endedBy   pgtype.UUID
	)

	err := s.Scan(&id, &schoolID, &busID, &driverID, &t.Direction, &t.Status, &routeName,
		&t.StartTime, &endTime, &startedBy, &endedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.SchoolID = uuid.UUID(schoolID.Bytes)
	t.BusID = uuid.UUID(busID.Bytes)
	t.DriverID = uuid.UUID(driverID.Bytes)
	t.StartedByUser = uuid.UUID(startedBy.Bytes)
	if routeName.Valid {
		rn := routeName.String
		t.RouteName = &rn
	}
	if endTime.Valid {
		et := endTime.Time
		t.EndTime = &et
	}
	if endedBy.Valid {
		eb := uuid.UUID(endedBy.Bytes)
		t.EndedByUser = &eb
	}
	return t, nil
}
