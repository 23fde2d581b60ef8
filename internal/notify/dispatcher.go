// Package notify defines the notification dispatch boundary.
//
// The dispatcher is constructed once in main and injected into the services
// that need it; there is no process-wide transport singleton. The shipped
// implementation guarantees in-app delivery and resolves the push tokens a
// real push transport would fan out to — the push/email transports
// themselves live outside this service.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/repo"
)

// Channels selects delivery channels for one notification.
// The zero value means "in-app only".
type Channels struct {
	InApp bool
	Push  bool
	Email bool
}

// Notification is one message to one user.
type Notification struct {
	UserID   uuid.UUID
	Title    string
	Body     string
	Type     string
	Category string
	Channels Channels
	Data     map[string]any
}

// Dispatcher fans a notification out to the user's registered channels.
type Dispatcher interface {
	Notify(ctx context.Context, n Notification) error
}

// InAppDispatcher is the Postgres-backed dispatcher: every notification is
// written to the in-app feed, and push-enabled notifications resolve the
// user's device tokens so an external push relay can pick them up.
type InAppDispatcher struct {
	repo repo.NotificationRepo
	log  *slog.Logger
}

// NewInAppDispatcher constructs a Dispatcher backed by the notification repo.
func NewInAppDispatcher(r repo.NotificationRepo, log *slog.Logger) *InAppDispatcher {
	return &InAppDispatcher{repo: r, log: log}
}

// Notify writes the in-app row and logs intended push fan-out.
// The in-app write is the source of truth for the reminder cooldown, so it
// must succeed for the notification to count as delivered.
func (d *InAppDispatcher) Notify(ctx context.Context, n Notification) error {
	err := d.repo.InsertInApp(ctx, repo.InAppNotification{
		UserID:   n.UserID,
		Title:    n.Title,
		Body:     n.Body,
		Type:     n.Type,
		Category: n.Category,
		Data:     n.Data,
	})
	if err != nil {
		return err
	}

	if n.Channels.Push {
		tokens, err := d.repo.DeviceTokensByUser(ctx, n.UserID)
		if err != nil {
			// Push is best-effort; the in-app row already landed.
			d.log.WarnContext(ctx, "device token lookup failed",
				"user_id", n.UserID, "error", err)
			return nil
		}
		d.log.InfoContext(ctx, "push dispatch",
			"user_id", n.UserID, "type", n.Type, "devices", len(tokens))
	}
	return nil
}

// Noop is a Dispatcher that drops everything. Useful in tests and tools.
type Noop struct{}

// Notify discards the notification.
func (Noop) Notify(context.Context, Notification) error { return nil }
