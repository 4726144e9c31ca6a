package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/metrics"
)

type fakeLock struct {
	acquired   bool
	releases   int
	refreshes  int
	refreshErr error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Refresh(context.Context) error {
	f.refreshes++
	return f.refreshErr
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	first := &testJob{name: "fail", err: errors.New("boom")}
	second := &testJob{name: "success"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, first, second)

	err := svc.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail: boom")
	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 1, second.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.acquired)
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	lock := &fakeLock{acquired: true}
	svc := newTestService(t, lock, job)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "job"}
	svc := newTestService(t, &fakeLock{}, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs, "first cycle runs before the ticker")
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "x"})})
	assert.Error(t, err)
}

func TestServiceRunCycleRefreshesLockBetweenJobs(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, first, second)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Equal(t, 1, lock.refreshes)
}

func TestServiceRunCycleStopsWhenLockLost(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	lock := &fakeLock{refreshErr: ErrLockLost}
	svc := newTestService(t, lock, first, second)

	err := svc.runCycle(context.Background())
	require.ErrorIs(t, err, ErrLockLost)
	assert.Equal(t, 1, first.runs)
	assert.Zero(t, second.runs)
	assert.Equal(t, 1, lock.releases)
}
