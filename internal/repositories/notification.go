package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/shared"
)

// NotificationRepository persists per-recipient notification records.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new NotificationRepository with the given database connection
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification with generated ID and sequence.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	sequence, err := NextSequence(r.db, "notifications")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if notification.ID == "" {
		notification.ID = shared.GenerateID()
	}
	notification.Sequence = sequence
	now := time.Now().UTC()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	if len(notification.Payload) == 0 {
		notification.Payload = []byte("{}")
	}

	if err := notification.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO notifications (id, sequence, kind, actor_id, recipient_id, payload, read, created_at, updated_at)
		VALUES (:id, :sequence, :kind, :actor_id, :recipient_id, :payload, :read, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListForUser retrieves a user's notifications, newest first. When unreadOnly
// is set, read notifications are filtered out.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT * FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY sequence DESC`

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead marks one notification as read, scoped to the recipient so users
// cannot touch each other's records.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1, updated_at = ? WHERE id = ? AND recipient_id = ?`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireRows(result, shared.ErrNotificationNotFound)
}

// MarkAllRead marks every unread notification for the user as read and
// reports how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1, updated_at = ? WHERE recipient_id = ? AND read = 0`,
		time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}
