package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
	"github.com/jwalitptl/medtrack-api/internal/storage"
	"github.com/jwalitptl/medtrack-api/pkg/circuitbreaker"
	"github.com/jwalitptl/medtrack-api/pkg/metrics"
)

type FileCleanupConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxAttempts failed deletes mark a task FAILED.
	MaxAttempts int
}

// FileCleanupProcessor retries report deletions that failed after their
// procedure was changed or removed.
type FileCleanupProcessor struct {
	tx      repository.Transactor
	repo    repository.FileCleanupRepository
	files   storage.Storage
	config  FileCleanupConfig
	breaker *circuitbreaker.CircuitBreaker
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewFileCleanupProcessor(
	tx repository.Transactor,
	repo repository.FileCleanupRepository,
	files storage.Storage,
	config FileCleanupConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) (*FileCleanupProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, errors.New("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, errors.New("poll interval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be greater than 0")
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &FileCleanupProcessor{
		tx:     tx,
		repo:   repo,
		files:  files,
		config: config,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "file-cleanup-storage",
			MaxFailures: 5,
			Timeout:     config.PollInterval * 4,
		}),
		logger:  logger.With().Str("component", "file_cleanup").Logger(),
		metrics: m,
	}, nil
}

// Start polls until ctx is cancelled.
func (p *FileCleanupProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Dur("poll_interval", p.config.PollInterval).Msg("Starting file cleanup processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Shutting down file cleanup processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Failed to process file cleanup batch")
			}
		}
	}
}

// ProcessBatch claims up to BatchSize pending tasks and deletes their files
// in one transaction, so concurrent workers never share a task. It returns
// the number of files released.
func (p *FileCleanupProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.CleanupProcessingLatency)
	defer timer.ObserveDuration()

	released := 0
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		tasks, err := p.repo.ClaimPending(ctx, p.config.BatchSize)
		if err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("claim_file_cleanup", "error").Inc()
			return fmt.Errorf("failed to claim pending tasks: %w", err)
		}
		p.metrics.DatabaseOperations.WithLabelValues("claim_file_cleanup", "success").Inc()

		for _, task := range tasks {
			done, err := p.process(ctx, task)
			if errors.Is(err, circuitbreaker.ErrOpen) {
				p.logger.Warn().Msg("Storage circuit open, deferring remaining cleanup tasks")
				return nil
			}
			if err != nil {
				return err
			}
			if done {
				released++
			}
		}
		return nil
	})
	if err != nil {
		return released, err
	}

	p.recordBacklog(ctx)
	return released, nil
}

// recordBacklog sets the queue gauge to the committed number of pending tasks.
func (p *FileCleanupProcessor) recordBacklog(ctx context.Context) {
	pending, err := p.repo.CountPending(ctx)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("count_file_cleanup", "error").Inc()
		p.logger.Warn().Err(err).Msg("Failed to count pending cleanup tasks")
		return
	}
	p.metrics.DatabaseOperations.WithLabelValues("count_file_cleanup", "success").Inc()
	p.metrics.CleanupQueueSize.Set(float64(pending))
}

// process deletes one task's file. A failed delete is recorded on the task
// and is not an error of the batch.
func (p *FileCleanupProcessor) process(ctx context.Context, task *model.FileCleanupTask) (bool, error) {
	deleteErr := p.breaker.Execute(func() error {
		err := p.files.Delete(ctx, task.StorageKey)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	})
	if errors.Is(deleteErr, circuitbreaker.ErrOpen) {
		return false, deleteErr
	}

	if deleteErr == nil {
		if err := p.repo.Complete(ctx, task.ID); err != nil {
			return false, fmt.Errorf("failed to complete task %s: %w", task.ID, err)
		}
		p.metrics.CleanupProcessed.Inc()
		p.logger.Info().Str("storage_key", task.StorageKey).Msg("Released queued report")
		return true, nil
	}

	status := model.FileCleanupPending
	if task.Attempts+1 >= p.config.MaxAttempts {
		status = model.FileCleanupFailed
		p.metrics.CleanupFailed.Inc()
	} else {
		p.metrics.CleanupRetries.Inc()
	}

	p.logger.Warn().
		Err(deleteErr).
		Str("storage_key", task.StorageKey).
		Int("attempt", task.Attempts+1).
		Str("status", string(status)).
		Msg("Failed to release queued report")

	if err := p.repo.RecordFailure(ctx, task.ID, deleteErr.Error(), status); err != nil {
		return false, fmt.Errorf("failed to record failure for task %s: %w", task.ID, err)
	}
	return false, nil
}
