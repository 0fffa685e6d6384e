package model

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	UserID    uuid.UUID   `json:"-" db:"user_id"`
	User      UserSummary `json:"user" db:"recipient"`
	Message   string      `json:"message" db:"message"`
	Timestamp time.Time   `json:"timestamp" db:"timestamp"`
}

// NotificationEvent is what gets published to the broker after commit.
type NotificationEvent struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (n *Notification) Event() NotificationEvent {
	return NotificationEvent{
		ID:        n.ID,
		UserID:    n.UserID,
		Message:   n.Message,
		Timestamp: n.Timestamp,
	}
}
