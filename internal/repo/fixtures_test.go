package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/repo"
	"github.com/schoolrun/backend/testutil"
)

// roster holds one school with one bus and one driver, seeded inside a
// transaction that is rolled back when the test finishes. The repos under
// test share the same transaction, so every write is visible to the test
// and nothing survives it.
//
// Requires TEST_DATABASE_URL to be set and all migrations to be applied
// (TestMain in this package takes care of the migrations).
type roster struct {
	tx pgx.Tx

	schoolID     uuid.UUID
	busID        uuid.UUID
	driverID     uuid.UUID
	adminUserID  uuid.UUID
	driverUserID uuid.UUID
}

func newRoster(t *testing.T) *roster {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		// Rollback discards all changes made during the test — no cleanup SQL needed.
		_ = tx.Rollback(context.Background())
	})

	r := &roster{
		tx:           tx,
		adminUserID:  uuid.New(),
		driverUserID: uuid.New(),
	}

	r.schoolID = r.insertReturningID(t, `
		INSERT INTO schools (user_id, name, latitude, longitude)
		VALUES ($1, 'Sunrise Academy', 6.50, 3.30)
		RETURNING id`, r.adminUserID)

	r.busID = r.insertReturningID(t, `
		INSERT INTO buses (school_id, name, plate)
		VALUES ($1, 'Bus 12', 'LAG-204-XY')
		RETURNING id`, r.schoolID)

	r.driverID = r.insertReturningID(t, `
		INSERT INTO drivers (school_id, user_id, name)
		VALUES ($1, $2, 'Samuel O.')
		RETURNING id`, r.schoolID, r.driverUserID)

	r.exec(t, `INSERT INTO driver_buses (driver_id, bus_id, school_id) VALUES ($1, $2, $3)`,
		r.driverID, r.busID, r.schoolID)

	return r
}

// addStudent inserts a student riding the roster's bus. Nil coordinates seed
// a student without a resolvable home position.
func (r *roster) addStudent(t *testing.T, name string, parentUserID *uuid.UUID, lat, lng *float64) uuid.UUID {
	t.Helper()
	id := r.insertReturningID(t, `
		INSERT INTO students (school_id, parent_user_id, name, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, r.schoolID, parentUserID, name, lat, lng)
	r.exec(t, `INSERT INTO student_buses (student_id, bus_id, school_id) VALUES ($1, $2, $3)`,
		id, r.busID, r.schoolID)
	return id
}

// addParent registers a parent profile for the given user, optionally with a
// home coordinate that takes precedence over the student's own.
func (r *roster) addParent(t *testing.T, userID uuid.UUID, lat, lng *float64) uuid.UUID {
	t.Helper()
	return r.insertReturningID(t, `
		INSERT INTO parents (school_id, user_id, name, latitude, longitude)
		VALUES ($1, $2, 'Parent', $3, $4)
		RETURNING id`, r.schoolID, userID, lat, lng)
}

// startTrip opens a running trip through the repo under test and returns its id.
func (r *roster) startTrip(t *testing.T, direction domain.TripDirection) uuid.UUID {
	t.Helper()
	id, err := repo.NewTripRepo(r.tx).CreateWithTargets(context.Background(), repo.NewTrip{
		SchoolID:      r.schoolID,
		BusID:         r.busID,
		DriverID:      r.driverID,
		Direction:     direction,
		StartedByUser: r.driverUserID,
	})
	require.NoError(t, err, "start trip")
	return id
}

// backdate shifts a trip's created_at into the past. now() is pinned for the
// whole transaction, so trips created in one test would otherwise tie on
// created_at and make ordering assertions meaningless.
func (r *roster) backdate(t *testing.T, tripID uuid.UUID, minutes int) {
	t.Helper()
	r.exec(t, `UPDATE trips SET created_at = created_at - make_interval(mins => $2) WHERE id = $1`,
		tripID, minutes)
}

// eventTypes returns the trip's audit event types. Order is not meaningful
// within a test transaction (occurred_at is pinned to transaction time), so
// callers should compare as sets.
func (r *roster) eventTypes(t *testing.T, tripID uuid.UUID) []string {
	t.Helper()
	rows, err := r.tx.Query(context.Background(),
		`SELECT type FROM trip_events WHERE trip_id = $1`, tripID)
	require.NoError(t, err)
	defer rows.Close()

	var types []string
	for rows.Next() {
		var typ string
		require.NoError(t, rows.Scan(&typ))
		types = append(types, typ)
	}
	require.NoError(t, rows.Err())
	return types
}

func (r *roster) insertReturningID(t *testing.T, q string, args ...any) uuid.UUID {
	t.Helper()
	var id pgtype.UUID
	err := r.tx.QueryRow(context.Background(), q, args...).Scan(&id)
	require.NoError(t, err, "seed fixture row")
	return uuid.UUID(id.Bytes)
}

func (r *roster) exec(t *testing.T, q string, args ...any) {
	t.Helper()
	_, err := r.tx.Exec(context.Background(), q, args...)
	require.NoError(t, err, "seed fixture row")
}

func ptrF(v float64) *float64 { return &v }
