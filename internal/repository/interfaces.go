package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/medtrack-api/internal/model"
)

// ErrNotFound is returned by Get-style lookups when no row matches.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write violates a unique constraint on Field.
type ErrDuplicate struct {
	Field string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

// All repository interfaces in one file
type (
	// Transactor runs fn in a transaction carried by the context. Repositories
	// called with that context join the transaction. Nested calls reuse the
	// outer transaction.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		UsernameExists(ctx context.Context, username string) (bool, error)
		EmailExists(ctx context.Context, email string) (bool, error)
		List(ctx context.Context) ([]*model.UserInfo, error)
	}

	RoleRepository interface {
		Exists(ctx context.Context, name string) (bool, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error)
	}

	ProcedureRepository interface {
		Create(ctx context.Context, procedure *model.Procedure) error
		Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error)
		// GetForUpdate is Get with the row locked until the surrounding
		// transaction ends.
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Procedure, error)
		Update(ctx context.Context, procedure *model.Procedure) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.ProcedureFilter) ([]*model.Procedure, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
	}

	// AdminStatRepository owns the singleton statistics row.
	AdminStatRepository interface {
		// Increment adds one to counter, creating the row if absent, in a
		// single atomic statement.
		Increment(ctx context.Context, counter model.StatCounter) error
		Get(ctx context.Context) (*model.AdminStat, error)
	}

	FileCleanupRepository interface {
		Enqueue(ctx context.Context, storageKey string, reason string) error
		// ClaimPending locks up to limit pending tasks for the current
		// transaction; other workers skip them.
		ClaimPending(ctx context.Context, limit int) ([]*model.FileCleanupTask, error)
		Complete(ctx context.Context, id uuid.UUID) error
		RecordFailure(ctx context.Context, id uuid.UUID, reason string, status model.FileCleanupStatus) error
		CountPending(ctx context.Context) (int, error)
	}
)
