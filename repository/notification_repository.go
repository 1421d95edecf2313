package repository

import (
	"context"
	"database/sql"

	"fairval/models"
)

// NotificationRepository inserts user notifications.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create queues n for its user.
func (r *NotificationRepository) Create(ctx context.Context, n models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, purchase_id, type, title, message, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, n.UserID, n.PurchaseID, n.Type, n.Title, n.Message, n.Priority)
	if err != nil {
		return mapPQError("failed to create notification", err)
	}
	return nil
}
