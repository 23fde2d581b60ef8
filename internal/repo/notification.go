package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InAppNotification is one row written to the in-app feed. The data column
// also serves as the reminder cooldown key (student_id).
type InAppNotification struct {
	UserID   uuid.UUID
	Title    string
	Body     string
	Type     string
	Category string
	Data     map[string]any
}

// NotificationRepo persists in-app notifications and resolves the push
// device tokens registered per user.
type NotificationRepo interface {
	// InsertInApp appends a notification to the user's in-app feed.
	InsertInApp(ctx context.Context, n InAppNotification) error

	// DeviceTokensByUser returns the user's enabled push tokens.
	DeviceTokensByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type pgNotificationRepo struct {
	db db
}

// NewNotificationRepo constructs a NotificationRepo backed by the provided
// db connection.
func NewNotificationRepo(db db) NotificationRepo {
	return &pgNotificationRepo{db: db}
}

func (r *pgNotificationRepo) InsertInApp(ctx context.Context, n InAppNotification) error {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("repo.NotificationRepo.InsertInApp: marshal data: %w", err)
	}

	const q = `
		INSERT INTO notifications (user_id, title, body, type, category, data)
		VALUES (@user_id, @title, @body, @type, @category, @data)`

	_, err = r.db.Exec(ctx, q, pgx.NamedArgs{
		"user_id":  n.UserID,
		"title":    n.Title,
		"body":     n.Body,
		"type":     n.Type,
		"category": n.Category,
		"data":     raw,
	})
	if err != nil {
		return fmt.Errorf("repo.NotificationRepo.InsertInApp: %w", err)
	}
	return nil
}

func (r *pgNotificationRepo) DeviceTokensByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	const q = `SELECT token FROM device_tokens WHERE user_id = @user_id AND enabled`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.NotificationRepo.DeviceTokensByUser: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("repo.NotificationRepo.DeviceTokensByUser: scan: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.NotificationRepo.DeviceTokensByUser: rows: %w", err)
	}
	return tokens, nil
}
