package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schoolrun/backend/internal/domain"
)

// LocationRepo defines the persistence operations for GPS pings.
type LocationRepo interface {
	// InsertBatch appends all points for the trip in one statement and
	// returns the number of rows inserted. Points without a recorded_at
	// are stamped with the database's now().
	InsertBatch(ctx context.Context, tripID uuid.UUID, points []domain.LocationPoint) (int, error)

	// Latest returns the trip's ping with the greatest recorded_at.
	// Returns domain.ErrNotFound when the trip has no pings yet.
	Latest(ctx context.Context, tripID uuid.UUID) (domain.TripLocation, error)
}

type pgLocationRepo struct {
	db db
}

// NewLocationRepo constructs a LocationRepo backed by the provided db connection.
func NewLocationRepo(db db) LocationRepo {
	return &pgLocationRepo{db: db}
}

func (r *pgLocationRepo) InsertBatch(ctx context.Context, tripID uuid.UUID, points []domain.LocationPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO trip_locations (trip_id, recorded_at, lat, lng, speed_kph, heading, accuracy_m) VALUES `)
	for i, p := range points {
		if i > 0 {
			sb.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&sb, "($%d::uuid, COALESCE($%d::timestamptz, now()), $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, tripID, p.RecordedAt, p.Lat, p.Lng, p.SpeedKPH, p.Heading, p.AccuracyM)
	}

	tag, err := r.db.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("repo.LocationRepo.InsertBatch: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgLocationRepo) Latest(ctx context.Context, tripID uuid.UUID) (domain.TripLocation, error) {
	const q = `
		SELECT id, trip_id, recorded_at, lat, lng, speed_kph, heading, accuracy_m
		FROM trip_locations
		WHERE trip_id = @trip_id
		ORDER BY recorded_at DESC
		LIMIT 1`

	var (
		loc       domain.TripLocation
		id        pgtype.UUID
		trip      pgtype.UUID
		speed     pgtype.Float8
		heading   pgtype.Float8
		accuracyM pgtype.Float8
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID}).
		Scan(&id, &trip, &loc.RecordedAt, &loc.Lat, &loc.Lng, &speed, &heading, &accuracyM)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TripLocation{}, fmt.Errorf("repo.LocationRepo.Latest: %w", domain.ErrNotFound)
		}
		return domain.TripLocation{}, fmt.Errorf("repo.LocationRepo.Latest: %w", err)
	}

	loc.ID = uuid.UUID(id.Bytes)
	loc.TripID = uuid.UUID(trip.Bytes)
	if speed.Valid {
		v := speed.Float64
		loc.SpeedKPH = &v
	}
	if heading.Valid {
		v := heading.Float64
		loc.Heading = &v
	}
	if accuracyM.Valid {
		v := accuracyM.Float64
		loc.AccuracyM = &v
	}
	return loc, nil
}
