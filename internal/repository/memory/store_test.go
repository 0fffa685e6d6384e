package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
)

func TestWithinTx_RollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID := uuid.New()

	err := s.Transactor().WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Notifications().Create(ctx, &model.Notification{UserID: userID, Message: "x"}))
		require.NoError(t, s.AdminStats().Increment(ctx, model.CounterTotalPatients))
		return errors.New("boom")
	})
	require.Error(t, err)

	assert.Equal(t, 0, s.CountNotifications(userID))
	_, err = s.AdminStats().Get(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTx_Nested(t *testing.T) {
	s := New()
	ctx := context.Background()
	tx := s.Transactor()

	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		return tx.WithinTx(ctx, func(ctx context.Context) error {
			return s.AdminStats().Increment(ctx, model.CounterDoctorUsers)
		})
	})
	require.NoError(t, err)

	stat, err := s.AdminStats().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stat.DoctorUsers)
}

func TestFailOn(t *testing.T) {
	s := New()
	boom := errors.New("disk full")
	s.FailOn(OpStatIncrement, boom)
	assert.ErrorIs(t, s.AdminStats().Increment(context.Background(), model.CounterAdminUsers), boom)

	s.FailOn(OpStatIncrement, nil)
	assert.NoError(t, s.AdminStats().Increment(context.Background(), model.CounterAdminUsers))
}

func TestProcedures_OrderAndCreator(t *testing.T) {
	s := New()
	ctx := context.Background()

	user := &model.User{Username: "alice", Email: "alice@example.com", Role: model.RoleDoctor}
	require.NoError(t, s.Users().Create(ctx, user))
	patient := &model.Patient{FirstName: "Ann", LastName: "Lee"}
	require.NoError(t, s.Patients().Create(ctx, patient))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Procedures().Create(ctx, &model.Procedure{
			PatientID:         patient.ID,
			ProcedureName:     "p",
			ProcedureDatetime: base.Add(time.Duration(i) * time.Hour),
			CreatedByID:       user.ID,
		}))
	}

	list, err := s.Procedures().List(ctx, model.ProcedureFilter{PatientID: &patient.ID})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].ProcedureDatetime.After(list[1].ProcedureDatetime))
	assert.Equal(t, "alice", list[0].CreatedBy.Username)

	other := uuid.New()
	list, err = s.Procedures().List(ctx, model.ProcedureFilter{PatientID: &other})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCleanupQueue(t *testing.T) {
	s := New()
	ctx := context.Background()
	repo := s.FileCleanup()

	require.NoError(t, repo.Enqueue(ctx, "reports/a.pdf", "timeout"))
	tasks, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, repo.RecordFailure(ctx, tasks[0].ID, "still down", model.FileCleanupFailed))
	n, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.Complete(ctx, tasks[0].ID))
	assert.Empty(t, s.CleanupTasks())
}
