package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesshub/accesshub/internal/shared/logger"
)

func TestSchedulerManager_RegisterAndLifecycle(t *testing.T) {
	m, err := NewSchedulerManager(logger.NewNop())
	require.NoError(t, err)

	noop := BatchJobFunc(func(context.Context) (int, error) { return 0, nil })
	require.NoError(t, m.RegisterMonitoringSweep(time.Hour, noop))
	require.NoError(t, m.RegisterSessionCleanup(time.Hour, noop))
	require.NoError(t, m.RegisterStatistics(time.Hour, noop))

	names := make([]string, 0, 3)
	for _, j := range m.Jobs() {
		names = append(names, j.Name())
	}
	assert.ElementsMatch(t, []string{JobMonitoringSweep, JobSessionCleanup, JobIngestionStatistics}, names)

	assert.False(t, m.IsStarted())
	m.Start()
	m.Start()
	assert.True(t, m.IsStarted())

	require.NoError(t, m.Stop())
	assert.False(t, m.IsStarted())
	require.NoError(t, m.Stop())
}

func TestSchedulerManager_RejectsNonPositiveInterval(t *testing.T) {
	m, err := NewSchedulerManager(logger.NewNop())
	require.NoError(t, err)

	err = m.RegisterMonitoringSweep(0, BatchJobFunc(func(context.Context) (int, error) { return 0, nil }))
	require.Error(t, err)
	assert.Empty(t, m.Jobs())
}

func TestSchedulerManager_RunsJobs(t *testing.T) {
	m, err := NewSchedulerManager(logger.NewNop())
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, m.RegisterStatistics(50*time.Millisecond, BatchJobFunc(func(ctx context.Context) (int, error) {
		_, hasDeadline := ctx.Deadline()
		if !hasDeadline {
			return 0, errors.New("job context has no deadline")
		}
		runs.Add(1)
		return 1, nil
	})))

	m.Start()
	defer func() { _ = m.Stop() }()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}
