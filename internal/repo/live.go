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

// LiveRepo serves the aggregation queries behind the live views. Read-only.
type LiveRepo interface {
	// ForSchool returns every running trip of the school with its latest
	// ping and pending-stop count, newest start first.
	ForSchool(ctx context.Context, schoolID uuid.UUID) ([]domain.LiveTrip, error)

	// ForParent returns the trip currently serving the parent's child's
	// bus, or nil (no error) when no such trip is running.
	ForParent(ctx context.Context, parentUserID uuid.UUID) (*domain.ParentLiveView, error)
}

type pgLiveRepo struct {
	db db
}

// NewLiveRepo constructs a LiveRepo backed by the provided db connection.
func NewLiveRepo(db db) LiveRepo {
	return &pgLiveRepo{db: db}
}

func (r *pgLiveRepo) ForSchool(ctx context.Context, schoolID uuid.UUID) ([]domain.LiveTrip, error) {
	// Latest ping per trip via a window function; pending count as a
	// correlated subquery — roster sizes keep both cheap.
	const q = `
		WITH latest AS (
			SELECT tl.*,
			       ROW_NUMBER() OVER (PARTITION BY tl.trip_id ORDER BY tl.recorded_at DESC) AS rn
			FROM trip_locations tl
		)
		SELECT t.id, t.bus_id, b.name, t.driver_id, t.direction, t.start_time,
		       l.lat, l.lng, l.speed_kph, l.recorded_at,
		       (SELECT count(*) FROM trip_targets tt WHERE tt.trip_id = t.id AND tt.status = 'pending')
		FROM trips t
		LEFT JOIN latest l ON l.trip_id = t.id AND l.rn = 1
		LEFT JOIN buses b ON b.id = t.bus_id
		WHERE t.school_id = @school_id AND t.status = 'running'
		ORDER BY t.start_time DESC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"school_id": schoolID})
	if err != nil {
		return nil, fmt.Errorf("repo.LiveRepo.ForSchool: %w", err)
	}
	defer rows.Close()

	var out []domain.LiveTrip
	for rows.Next() {
		var (
			lt         domain.LiveTrip
			tripID     pgtype.UUID
			busID      pgtype.UUID
			busName    pgtype.Text
			driverID   pgtype.UUID
			lat        pgtype.Float8
			lng        pgtype.Float8
			speed      pgtype.Float8
			recordedAt pgtype.Timestamptz
			pending    int64
		)
		err := rows.Scan(&tripID, &busID, &busName, &driverID, &lt.Direction, &lt.StartTime,
			&lat, &lng, &speed, &recordedAt, &pending)
		if err != nil {
			return nil, fmt.Errorf("repo.LiveRepo.ForSchool: scan: %w", err)
		}

		lt.TripID = uuid.UUID(tripID.Bytes)
		lt.BusID = uuid.UUID(busID.Bytes)
		lt.DriverID = uuid.UUID(driverID.Bytes)
		lt.RemainingPending = int(pending)
		if busName.Valid {
			n := busName.String
			lt.BusName = &n
		}
		if lat.Valid {
			v := lat.Float64
			lt.Lat = &v
		}
		if lng.Valid {
			v := lng.Float64
			lt.Lng = &v
		}
		if speed.Valid {
			v := speed.Float64
			lt.SpeedKPH = &v
		}
		if recordedAt.Valid {
			ts := recordedAt.Time
			lt.RecordedAt = &ts
		}
		out = append(out, lt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.LiveRepo.ForSchool: rows: %w", err)
	}
	return out, nil
}

func (r *pgLiveRepo) ForParent(ctx context.Context, parentUserID uuid.UUID) (*domain.ParentLiveView, error) {
	// Walk parent → child → bus → running trip, then attach the latest
	// ping plus school and home coordinates for client-side rendering.
	const q = `
		WITH kids AS (
			SELECT s.id AS student_id, s.school_id
			FROM students s
			WHERE s.parent_user_id = @user_id AND s.deleted_at IS NULL
		), bus AS (
			SELECT sb.bus_id, sb.school_id
			FROM student_buses sb
			JOIN kids k ON k.student_id = sb.student_id
			LIMIT 1
		), trip AS (
			SELECT t.id, t.bus_id, t.direction
			FROM trips t
			JOIN bus b ON b.bus_id = t.bus_id AND b.school_id = t.school_id
			WHERE t.status = 'running'
			LIMIT 1
		), latest AS (
			SELECT tl.lat, tl.lng, tl.recorded_at
			FROM trip_locations tl
			JOIN trip tr ON tr.id = tl.trip_id
			ORDER BY tl.recorded_at DESC
			LIMIT 1
		), school AS (
			SELECT sch.latitude, sch.longitude
			FROM schools sch
			JOIN bus b ON b.school_id = sch.id
			LIMIT 1
		), home AS (
			SELECT p.latitude, p.longitude FROM parents p WHERE p.user_id = @user_id LIMIT 1
		)
		SELECT tr.id, tr.bus_id, tr.direction,
		       l.lat, l.lng, l.recorded_at,
		       sch.latitude, sch.longitude,
		       h.latitude, h.longitude
		FROM trip tr
		LEFT JOIN latest l ON true
		LEFT JOIN school sch ON true
		LEFT JOIN home h ON true`

	var (
		v          domain.ParentLiveView
		tripID     pgtype.UUID
		busID      pgtype.UUID
		lat        pgtype.Float8
		lng        pgtype.Float8
		recordedAt pgtype.Timestamptz
		schoolLat  pgtype.Float8
		schoolLng  pgtype.Float8
		homeLat    pgtype.Float8
		homeLng    pgtype.Float8
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": parentUserID}).
		Scan(&tripID, &busID, &v.Direction, &lat, &lng, &recordedAt,
			&schoolLat, &schoolLng, &homeLat, &homeLng)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repo.LiveRepo.ForParent: %w", err)
	}

	v.TripID = uuid.UUID(tripID.Bytes)
	v.BusID = uuid.UUID(busID.Bytes)
	if lat.Valid {
		f := lat.Float64
		v.Lat = &f
	}
	if lng.Valid {
		f := lng.Float64
		v.Lng = &f
	}
	if recordedAt.Valid {
		ts := recordedAt.Time
		v.RecordedAt = &ts
	}
	if schoolLat.Valid {
		f := schoolLat.Float64
		v.SchoolLat = &f
	}
	if schoolLng.Valid {
		f := schoolLng.Float64
		v.SchoolLng = &f
	}
	if homeLat.Valid {
		f := homeLat.Float64
		v.HomeLat = &f
	}
	if homeLng.Valid {
		f := homeLng.Float64
		v.HomeLng = &f
	}
	return &v, nil
}
