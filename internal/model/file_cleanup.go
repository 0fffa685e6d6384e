package model

import (
	"time"

	"github.com/google/uuid"
)

type FileCleanupStatus string

const (
	FileCleanupPending FileCleanupStatus = "PENDING"
	FileCleanupFailed  FileCleanupStatus = "FAILED"
)

// FileCleanupTask is a stored file whose release failed and must be retried.
type FileCleanupTask struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	StorageKey   string            `db:"storage_key" json:"storage_key"`
	Status       FileCleanupStatus `db:"status" json:"status"`
	Attempts     int               `db:"attempts" json:"attempts"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}
