package worker_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository/memory"
	"github.com/jwalitptl/medtrack-api/internal/storage"
	"github.com/jwalitptl/medtrack-api/internal/worker"
	"github.com/jwalitptl/medtrack-api/pkg/metrics"
)

type brokenDeletes struct {
	*storage.Memory
}

func (brokenDeletes) Delete(context.Context, string) error {
	return errors.New("bucket unavailable")
}

func newProcessor(t *testing.T, store *memory.Store, files storage.Storage, m *metrics.Metrics) *worker.FileCleanupProcessor {
	t.Helper()
	p, err := worker.NewFileCleanupProcessor(store.Transactor(), store.FileCleanup(), files,
		worker.FileCleanupConfig{BatchSize: 10, PollInterval: time.Second, MaxAttempts: 2},
		zerolog.Nop(), m)
	require.NoError(t, err)
	return p
}

func TestProcessBatch_ReleasesFiles(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	files := storage.NewMemory()
	m := metrics.NewNop()

	require.NoError(t, files.Save(ctx, "reports/a.pdf", strings.NewReader("a"), 1))
	require.NoError(t, store.FileCleanup().Enqueue(ctx, "reports/a.pdf", "timeout"))
	require.NoError(t, store.FileCleanup().Enqueue(ctx, "reports/gone.pdf", "timeout"))

	released, err := newProcessor(t, store, files, m).ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, released)
	assert.False(t, files.Exists("reports/a.pdf"))
	assert.Empty(t, store.CleanupTasks())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CleanupProcessed))
	assert.Zero(t, testutil.ToFloat64(m.CleanupQueueSize))
}

func TestProcessBatch_QueueGaugeReportsBacklog(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := metrics.NewNop()
	for _, key := range []string{"reports/a.pdf", "reports/b.pdf", "reports/c.pdf"} {
		require.NoError(t, store.FileCleanup().Enqueue(ctx, key, "timeout"))
	}

	p, err := worker.NewFileCleanupProcessor(store.Transactor(), store.FileCleanup(), storage.NewMemory(),
		worker.FileCleanupConfig{BatchSize: 1, PollInterval: time.Second, MaxAttempts: 2},
		zerolog.Nop(), m)
	require.NoError(t, err)

	released, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CleanupQueueSize), "gauge counts the backlog, not the batch")
}

func TestProcessBatch_MarksFailedAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	files := brokenDeletes{storage.NewMemory()}
	m := metrics.NewNop()
	require.NoError(t, store.FileCleanup().Enqueue(ctx, "reports/a.pdf", "timeout"))

	p := newProcessor(t, store, files, m)

	released, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)
	tasks := store.CleanupTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, model.FileCleanupPending, tasks[0].Status)
	assert.Equal(t, 1, tasks[0].Attempts)
	require.NotNil(t, tasks[0].ErrorMessage)
	assert.Equal(t, "bucket unavailable", *tasks[0].ErrorMessage)

	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	tasks = store.CleanupTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, model.FileCleanupFailed, tasks[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupFailed))

	n, err := store.FileCleanup().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "failed tasks are no longer claimed")
}

func TestNewFileCleanupProcessor_RejectsBadConfig(t *testing.T) {
	store := memory.New()
	_, err := worker.NewFileCleanupProcessor(store.Transactor(), store.FileCleanup(), storage.NewMemory(),
		worker.FileCleanupConfig{BatchSize: 0, PollInterval: time.Second, MaxAttempts: 1}, zerolog.Nop(), nil)
	assert.Error(t, err)
}

