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

// RouteTarget is a pending stop with a resolved coordinate, as consumed by
// the route optimizer. Targets without a resolvable coordinate are excluded
// at query time; they keep insertion order untouched.
type RouteTarget struct {
	ID        uuid.UUID
	StudentID uuid.UUID
	Name      string
	Lat       float64
	Lng       float64
}

// TargetOrder pairs a target id with its computed visiting position.
type TargetOrder struct {
	ID         uuid.UUID
	OrderIndex int
}

// TargetRepo defines the persistence operations for trip targets.
// All writes are scoped by (trip_id, target_id) so a target id from another
// trip can never be touched.
type TargetRepo interface {
	// UpdateStatus sets the target's status and acted_at, and appends the
	// matching audit event — both in one transaction so neither exists
	// without the other. Returns found=false (no error) when the
	// (trip, target) pair matches no row.
	UpdateStatus(ctx context.Context, tripID, targetID uuid.UUID, status domain.TargetStatus) (found bool, err error)

	// ForOrdering returns the trip's pending home targets that carry a
	// resolvable coordinate, in insertion order.
	ForOrdering(ctx context.Context, tripID uuid.UUID) ([]RouteTarget, error)

	// UpdateOrder persists the computed visiting order for the given
	// targets. A no-op on an empty slice.
	UpdateOrder(ctx context.Context, tripID uuid.UUID, ordered []TargetOrder) error

	// List returns the trip's full roster with student names, ordered by
	// order_index (unordered targets last) then insertion order.
	List(ctx context.Context, tripID uuid.UUID) ([]domain.TargetSummary, error)
}

type pgTargetRepo struct {
	db db
}

// NewTargetRepo constructs a TargetRepo backed by the provided db connection.
func NewTargetRepo(db db) TargetRepo {
	return &pgTargetRepo{db: db}
}

func (r *pgTargetRepo) UpdateStatus(ctx context.Context, tripID, targetID uuid.UUID, status domain.TargetStatus) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("repo.TargetRepo.UpdateStatus: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE trip_targets
		SET status = @status, acted_at = now(), updated_at = now()
		WHERE id = @target_id AND trip_id = @trip_id`

	tag, err := tx.Exec(ctx, update, pgx.NamedArgs{
		"status":    status,
		"target_id": targetID,
		"trip_id":   tripID,
	})
	if err != nil {
		return false, fmt.Errorf("repo.TargetRepo.UpdateStatus: update: %w", err)
	}

	if tag.RowsAffected() > 0 {
		// The event type names the action directly: picked/dropped/skipped.
		const insertEvent = `
			INSERT INTO trip_events (trip_id, type, meta)
			VALUES (@trip_id, @type, jsonb_build_object('target_id', @target_id::text))`

		_, err := tx.Exec(ctx, insertEvent, pgx.NamedArgs{
			"trip_id":   tripID,
			"type":      string(status),
			"target_id": targetID,
		})
		if err != nil {
			return false, fmt.Errorf("repo.TargetRepo.UpdateStatus: event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("repo.TargetRepo.UpdateStatus: commit: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgTargetRepo) ForOrdering(ctx context.Context, tripID uuid.UUID) ([]RouteTarget, error) {
	const q = `
		SELECT tt.id, tt.student_id, s.name,
		       COALESCE(tt.target_lat, p.latitude, s.latitude) AS lat,
		       COALESCE(tt.target_lng, p.longitude, s.longitude) AS lng
		FROM trip_targets tt
		JOIN students s ON s.id = tt.student_id
		LEFT JOIN parents p ON p.user_id = s.parent_user_id AND p.school_id = s.school_id
		WHERE tt.trip_id = @trip_id AND tt.status = 'pending'
		  AND COALESCE(tt.target_lat, p.latitude, s.latitude) IS NOT NULL
		  AND COALESCE(tt.target_lng, p.longitude, s.longitude) IS NOT NULL
		ORDER BY tt.created_at`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.TargetRepo.ForOrdering: %w", err)
	}
	defer rows.Close()

	var targets []RouteTarget
	for rows.Next() {
		var (
			t         RouteTarget
			id        pgtype.UUID
			studentID pgtype.UUID
		)
		if err := rows.Scan(&id, &studentID, &t.Name, &t.Lat, &t.Lng); err != nil {
			return nil, fmt.Errorf("repo.TargetRepo.ForOrdering: scan: %w", err)
		}
		t.ID = uuid.UUID(id.Bytes)
		t.StudentID = uuid.UUID(studentID.Bytes)
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TargetRepo.ForOrdering: rows: %w", err)
	}
	return targets, nil
}

func (r *pgTargetRepo) UpdateOrder(ctx context.Context, tripID uuid.UUID, ordered []TargetOrder) error {
	if len(ordered) == 0 {
		return nil
	}

	// One statement for the whole batch: join the targets against an
	// inline VALUES list of (id, order_index) pairs.
	var (
		sb   strings.Builder
		args = []any{tripID}
	)
	sb.WriteString(`UPDATE trip_targets t SET order_index = v.order_index, updated_at = now() FROM (VALUES `)
	for i, o := range ordered {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "($%d::uuid, $%d::int)", len(args)+1, len(args)+2)
		args = append(args, o.ID, o.OrderIndex)
	}
	sb.WriteString(`) AS v(id, order_index) WHERE t.id = v.id AND t.trip_id = $1`)

	if _, err := r.db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("repo.TargetRepo.UpdateOrder: %w", err)
	}
	return nil
}

func (r *pgTargetRepo) List(ctx context.Context, tripID uuid.UUID) ([]domain.TargetSummary, error) {
	const q = `
		SELECT tt.id, tt.student_id, s.name, tt.status, tt.order_index,
		       COALESCE(tt.target_lat, p.latitude, s.latitude) AS lat,
		       COALESCE(tt.target_lng, p.longitude, s.longitude) AS lng
		FROM trip_targets tt
		JOIN students s ON s.id = tt.student_id
		LEFT JOIN parents p ON p.user_id = s.parent_user_id AND p.school_id = s.school_id
		WHERE tt.trip_id = @trip_id
		ORDER BY COALESCE(tt.order_index, 2147483647), tt.created_at`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.TargetRepo.List: %w", err)
	}
	defer rows.Close()

	var targets []domain.TargetSummary
	for rows.Next() {
		t, err := scanTargetSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TargetRepo.List: scan: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TargetRepo.List: rows: %w", err)
	}
	return targets, nil
}

func scanTargetSummary(s scanner) (domain.TargetSummary, error) {
	var (
		t          domain.TargetSummary
		id         pgtype.UUID
		studentID  pgtype.UUID
		orderIndex pgtype.Int4
		lat        pgtype.Float8
		lng        pgtype.Float8
	)

	err := s.Scan(&id, &studentID, &t.Name, &t.Status, &orderIndex, &lat, &lng)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TargetSummary{}, domain.ErrNotFound
		}
		return domain.TargetSummary{}, err
	}

	t.TargetID = uuid.UUID(id.Bytes)
	t.StudentID = uuid.UUID(studentID.Bytes)
	if orderIndex.Valid {
		oi := int(orderIndex.Int32)
		t.OrderIndex = &oi
	}
	if lat.Valid {
		v := lat.Float64
		t.Lat = &v
	}
	if lng.Valid {
		v := lng.Float64
		t.Lng = &v
	}
	return t, nil
}
