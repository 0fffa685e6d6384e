package event

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository/memory"
	"github.com/jwalitptl/medtrack-api/internal/service/stats"
	"github.com/jwalitptl/medtrack-api/internal/storage"
	"github.com/jwalitptl/medtrack-api/pkg/metrics"
)

type failingStorage struct {
	*storage.Memory
	err error
}

func (f failingStorage) Delete(context.Context, string) error { return f.err }

type recordingBroker struct {
	published []interface{}
	err       error
}

func (b *recordingBroker) Publish(_ context.Context, _ string, msg interface{}) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, msg)
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }
func (b *recordingBroker) Close() error { return nil }

type fixture struct {
	store    *memory.Store
	files    storage.Storage
	broker   *recordingBroker
	metrics  *metrics.Metrics
	pipeline *Pipeline
}

func newFixture(files storage.Storage) *fixture {
	store := memory.New()
	if files == nil {
		files = storage.NewMemory()
	}
	f := &fixture{store: store, files: files, broker: &recordingBroker{}, metrics: metrics.NewNop()}
	f.pipeline = NewPipeline(store.Notifications(), stats.NewService(store.AdminStats()),
		store.FileCleanup(), files, f.broker, f.metrics, zerolog.Nop())
	return f
}

func TestPatientCreated(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	creator := uuid.New()

	n, err := f.pipeline.PatientCreated(ctx, &model.Patient{FirstName: "Ann", LastName: "Lee"}, creator)
	require.NoError(t, err)
	assert.Equal(t, "A new patient record for Ann Lee has been created.", n.Message)
	assert.Equal(t, creator, n.UserID)
	assert.Equal(t, 1, f.store.CountNotifications(creator))

	stat, err := f.store.AdminStats().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stat.TotalPatients)
}

func TestProcedureSaved(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	doctor := uuid.New()
	patient := &model.Patient{FirstName: "Ann", LastName: "Lee"}
	proc := &model.Procedure{ProcedureName: "MRI", CreatedByID: doctor}

	n, err := f.pipeline.ProcedureSaved(ctx, proc, patient, true)
	require.NoError(t, err)
	assert.Equal(t, "A procedure MRI for patient Ann Lee has been created.", n.Message)

	n, err = f.pipeline.ProcedureSaved(ctx, proc, patient, false)
	require.NoError(t, err)
	assert.Equal(t, "A procedure MRI for patient Ann Lee has been updated.", n.Message)

	assert.Equal(t, 2, f.store.CountNotifications(doctor))
	stat, err := f.store.AdminStats().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stat.TotalProcedures, "updates are not counted")
}

func TestRoleAssigned(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	for _, r := range []model.Role{model.RoleDoctor, model.RoleDoctor, model.RoleAdmin, model.RoleFrontDesk} {
		require.NoError(t, f.pipeline.RoleAssigned(ctx, &model.User{Role: r}))
	}
	stat, err := f.store.AdminStats().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stat.DoctorUsers)
	assert.Equal(t, int64(1), stat.AdminUsers)
	assert.Equal(t, int64(1), stat.FrontDeskUsers)
}

func TestFailuresAreLabelledByStage(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	patient := &model.Patient{FirstName: "Ann", LastName: "Lee"}

	f.store.FailOn(memory.OpNotificationCreate, errors.New("insert failed"))
	_, err := f.pipeline.PatientCreated(ctx, patient, uuid.New())
	assert.ErrorContains(t, err, "failed to create notification")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PipelineFailures.WithLabelValues(EventPatientCreated, stageNotification)))

	f.store.FailOn(memory.OpNotificationCreate, nil)
	f.store.FailOn(memory.OpStatIncrement, errors.New("lock timeout"))
	_, err = f.pipeline.PatientCreated(ctx, patient, uuid.New())
	assert.ErrorContains(t, err, "failed to increment total_patients")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PipelineFailures.WithLabelValues(EventPatientCreated, stageCounter)))
}

func TestReportReleased(t *testing.T) {
	files := storage.NewMemory()
	f := newFixture(files)
	ctx := context.Background()

	require.NoError(t, files.Save(ctx, "reports/a.pdf", bytes.NewReader([]byte("%PDF")), 4))
	f.pipeline.ReportReleased(ctx, "reports/a.pdf")
	assert.False(t, files.Exists("reports/a.pdf"))
	assert.Empty(t, f.store.CleanupTasks())
}

func TestReportReleased_QueuesOnFailure(t *testing.T) {
	f := newFixture(failingStorage{Memory: storage.NewMemory(), err: errors.New("s3 unavailable")})

	f.pipeline.ReportReleased(context.Background(), "reports/a.pdf")

	tasks := f.store.CleanupTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "reports/a.pdf", tasks[0].StorageKey)
	require.NotNil(t, tasks[0].ErrorMessage)
	assert.Contains(t, *tasks[0].ErrorMessage, "s3 unavailable")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CleanupEnqueued))
}

func TestPublish(t *testing.T) {
	f := newFixture(nil)
	n := &model.Notification{ID: uuid.New(), UserID: uuid.New(), Message: "hi"}

	f.pipeline.Publish(context.Background(), n, nil)
	require.Len(t, f.broker.published, 1)
	assert.Equal(t, n.Event(), f.broker.published[0])

	f.broker.err = errors.New("redis down")
	f.pipeline.Publish(context.Background(), n)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Publishes.WithLabelValues("error")))
}
