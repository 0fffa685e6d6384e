package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
)

type fileCleanupRepository struct {
	BaseRepository
}

func NewFileCleanupRepository(db *sqlx.DB) repository.FileCleanupRepository {
	return &fileCleanupRepository{NewBaseRepository(db)}
}

func (r *fileCleanupRepository) Enqueue(ctx context.Context, storageKey string, reason string) error {
	query := `
		INSERT INTO file_cleanup_queue (id, storage_key, status, attempts, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, NOW(), NOW())
	`
	if _, err := r.q(ctx).ExecContext(ctx, query, uuid.New(), storageKey, model.FileCleanupPending, reason); err != nil {
		return fmt.Errorf("failed to enqueue file cleanup: %w", err)
	}
	return nil
}

func (r *fileCleanupRepository) ClaimPending(ctx context.Context, limit int) ([]*model.FileCleanupTask, error) {
	query := `
		SELECT id, storage_key, status, attempts, error_message, created_at, updated_at
		FROM file_cleanup_queue
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	tasks := []*model.FileCleanupTask{}
	if err := r.q(ctx).SelectContext(ctx, &tasks, query, model.FileCleanupPending, limit); err != nil {
		return nil, fmt.Errorf("failed to claim file cleanup tasks: %w", err)
	}
	return tasks, nil
}

func (r *fileCleanupRepository) Complete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.q(ctx).ExecContext(ctx, `DELETE FROM file_cleanup_queue WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to complete file cleanup: %w", err)
	}
	return nil
}

func (r *fileCleanupRepository) RecordFailure(ctx context.Context, id uuid.UUID, reason string, status model.FileCleanupStatus) error {
	query := `
		UPDATE file_cleanup_queue
		SET attempts = attempts + 1, error_message = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.q(ctx).ExecContext(ctx, query, id, reason, status); err != nil {
		return fmt.Errorf("failed to record file cleanup failure: %w", err)
	}
	return nil
}

func (r *fileCleanupRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM file_cleanup_queue WHERE status = $1`
	if err := r.q(ctx).GetContext(ctx, &n, query, model.FileCleanupPending); err != nil {
		return 0, fmt.Errorf("failed to count file cleanup tasks: %w", err)
	}
	return n, nil
}
