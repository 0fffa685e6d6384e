package stats_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository/memory"
	"github.com/jwalitptl/medtrack-api/internal/service/stats"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
)

func TestService(t *testing.T) {
	svc := stats.NewService(memory.New().AdminStats())
	ctx := context.Background()

	_, err := svc.Get(ctx)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	require.NoError(t, svc.Increment(ctx, model.CounterTotalPatients))
	require.NoError(t, svc.IncrementRole(ctx, model.RoleDoctor))
	require.NoError(t, svc.IncrementRole(ctx, model.RoleDoctor))
	require.NoError(t, svc.IncrementRole(ctx, model.Role("Nurse")))

	stat, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stat.TotalPatients)
	assert.Equal(t, int64(2), stat.DoctorUsers)
	assert.Zero(t, stat.AdminUsers)
	assert.Zero(t, stat.FrontDeskUsers)
}

func TestService_ConcurrentIncrements(t *testing.T) {
	svc := stats.NewService(memory.New().AdminStats())
	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- svc.Increment(ctx, model.CounterTotalPatients)
		}()
		go func() {
			defer wg.Done()
			errs <- svc.IncrementRole(ctx, model.RoleFrontDesk)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stat, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stat.TotalPatients)
	assert.Equal(t, int64(n), stat.FrontDeskUsers)
}
