package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{NewBaseRepository(db)}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, message, timestamp)
		VALUES ($1, $2, $3, $4)
	`
	n.ID = uuid.New()
	n.Timestamp = time.Now().UTC()

	if _, err := r.q(ctx).ExecContext(ctx, query, n.ID, n.UserID, n.Message, n.Timestamp); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	query := `
		SELECT n.id, n.user_id, n.message, n.timestamp,
			u.id AS "recipient.id", u.username AS "recipient.username", u.email AS "recipient.email"
		FROM notifications n
		JOIN users u ON u.id = n.user_id
		WHERE n.user_id = $1
		ORDER BY n.timestamp DESC
	`
	notifications := []*model.Notification{}
	if err := r.q(ctx).SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
