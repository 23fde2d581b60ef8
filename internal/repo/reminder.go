package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schoolrun/backend/internal/domain"
)

// ReminderRepo reads the proximity-reminder configuration owned by the
// notifications collaborator. Strictly read-only here.
type ReminderRepo interface {
	// SubscriptionsForTrip returns every enabled subscription whose
	// student is still a pending home target on the trip, with the home
	// coordinate resolved from the target.
	SubscriptionsForTrip(ctx context.Context, tripID uuid.UUID) ([]domain.ReminderSubscription, error)

	// HasRecentReminder reports whether a notification of the given type
	// about the given student was already sent to the user within the
	// lookback window. This is the cooldown check.
	HasRecentReminder(ctx context.Context, userID uuid.UUID, notifType string, studentID uuid.UUID, within time.Duration) (bool, error)
}

type pgReminderRepo struct {
	db db
}

// NewReminderRepo constructs a ReminderRepo backed by the provided db connection.
func NewReminderRepo(db db) ReminderRepo {
	return &pgReminderRepo{db: db}
}

func (r *pgReminderRepo) SubscriptionsForTrip(ctx context.Context, tripID uuid.UUID) ([]domain.ReminderSubscription, error) {
	const q = `
		SELECT pr.parent_user_id, pr.student_id,
		       pr.pickup_radius_km::float8, pr.dropoff_radius_km::float8,
		       tt.target_lat, tt.target_lng
		FROM parent_reminders pr
		JOIN trip_targets tt ON tt.student_id = pr.student_id
		     AND tt.trip_id = @trip_id
		     AND tt.target_kind = 'home'
		     AND tt.status = 'pending'
		WHERE pr.enabled`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.ReminderRepo.SubscriptionsForTrip: %w", err)
	}
	defer rows.Close()

	var subs []domain.ReminderSubscription
	for rows.Next() {
		var (
			sub           domain.ReminderSubscription
			parentUserID  pgtype.UUID
			studentID     pgtype.UUID
			pickupRadius  pgtype.Float8
			dropoffRadius pgtype.Float8
			homeLat       pgtype.Float8
			homeLng       pgtype.Float8
		)
		err := rows.Scan(&parentUserID, &studentID, &pickupRadius, &dropoffRadius, &homeLat, &homeLng)
		if err != nil {
			return nil, fmt.Errorf("repo.ReminderRepo.SubscriptionsForTrip: scan: %w", err)
		}

		sub.ParentUserID = uuid.UUID(parentUserID.Bytes)
		sub.StudentID = uuid.UUID(studentID.Bytes)
		sub.Enabled = true
		if pickupRadius.Valid {
			v := pickupRadius.Float64
			sub.PickupRadiusKM = &v
		}
		if dropoffRadius.Valid {
			v := dropoffRadius.Float64
			sub.DropoffRadiusKM = &v
		}
		if homeLat.Valid && homeLng.Valid {
			sub.Home = &domain.Coordinate{Lat: homeLat.Float64, Lng: homeLng.Float64}
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.ReminderRepo.SubscriptionsForTrip: rows: %w", err)
	}
	return subs, nil
}

func (r *pgReminderRepo) HasRecentReminder(ctx context.Context, userID uuid.UUID, notifType string, studentID uuid.UUID, within time.Duration) (bool, error) {
	const q = `
		SELECT 1 FROM notifications
		WHERE user_id = @user_id
		  AND type = @type
		  AND created_at > now() - make_interval(secs => @within_secs)
		  AND data->>'student_id' = @student_id
		LIMIT 1`

	var one int
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"user_id":     userID,
		"type":        notifType,
		"within_secs": within.Seconds(),
		"student_id":  studentID.String(),
	}).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("repo.ReminderRepo.HasRecentReminder: %w", err)
	}
	return true, nil
}
