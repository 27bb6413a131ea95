package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/pkg/logger"
)

type countingJob struct {
	name  string
	runs  atomic.Int64
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func TestCronExpression_Next(t *testing.T) {
	almaty := time.FixedZone("ALMT", 5*3600)
	// Wednesday.
	from := time.Date(2025, 10, 15, 13, 37, 20, 0, almaty)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 0 * * *", time.Date(2025, 10, 16, 0, 0, 0, 0, almaty)},
		{"@weekly", time.Date(2025, 10, 20, 0, 0, 0, 0, almaty)},
		{"0 0 1 * *", time.Date(2025, 11, 1, 0, 0, 0, 0, almaty)},
		{"*/15 * * * *", time.Date(2025, 10, 15, 13, 45, 0, 0, almaty)},
		{"5 0 * * *", time.Date(2025, 10, 16, 0, 5, 0, 0, almaty)},
		{"0 9-17/4 * * 1-5", time.Date(2025, 10, 15, 17, 0, 0, 0, almaty)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ce.Next(from)), "got %s", ce.Next(from))
		})
	}
}

func TestCronExpression_NextIsStrictlyAfter(t *testing.T) {
	ce, err := ParseCronExpression("@daily")
	require.NoError(t, err)

	midnight := time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC)
	assert.True(t, midnight.AddDate(0, 0, 1).Equal(ce.Next(midnight)))
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("@every 90m")
	require.NoError(t, err)
	assert.Equal(t, "@every 1h30m0s", s.String())

	for _, bad := range []string{"", "* * * *", "60 * * * *", "0 0 0 * *", "*/0 * * * *", "5-1 * * * *", "@every 10ms", "@every soon"} {
		_, err := ParseSchedule(bad)
		assert.Error(t, err, bad)
	}
}

func TestScheduler_Register(t *testing.T) {
	s := New(Config{Logger: logger.Nop()})
	job := &countingJob{name: "a"}

	assert.ErrorIs(t, s.Register(nil, newTestInterval(t)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)
	require.NoError(t, s.RegisterSpec(job, "@daily"))
	assert.ErrorIs(t, s.RegisterSpec(job, "@daily"), ErrJobAlreadyExists)
	assert.Error(t, s.RegisterSpec(&countingJob{name: "b"}, "not a cron"))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "@daily", jobs[0].Schedule)
	assert.True(t, jobs[0].Enabled)
}

func TestScheduler_TickRunsDueJobsOnce(t *testing.T) {
	clock := time.Date(2025, 10, 15, 23, 59, 30, 0, time.UTC)
	s := New(Config{Logger: logger.Nop()})
	s.now = func() time.Time { return clock }

	job := &countingJob{name: "reset"}
	require.NoError(t, s.RegisterSpec(job, "@daily"))

	ctx := context.Background()
	s.tick(ctx)
	s.wg.Wait()
	assert.Zero(t, job.runs.Load())

	clock = clock.Add(45 * time.Second)
	s.tick(ctx)
	s.wg.Wait()
	s.tick(ctx)
	s.wg.Wait()
	assert.Equal(t, int64(1), job.runs.Load())

	info := s.ListJobs()[0]
	assert.True(t, time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC).Equal(info.NextRun))
	assert.Equal(t, int64(1), info.RunCount)
}

func TestScheduler_SetEnabled(t *testing.T) {
	clock := time.Date(2025, 10, 15, 23, 59, 30, 0, time.UTC)
	s := New(Config{Logger: logger.Nop()})
	s.now = func() time.Time { return clock }

	job := &countingJob{name: "reset"}
	require.NoError(t, s.RegisterSpec(job, "@daily"))
	require.NoError(t, s.SetEnabled("reset", false))
	assert.ErrorIs(t, s.SetEnabled("missing", true), ErrJobNotFound)

	ctx := context.Background()
	clock = clock.Add(time.Minute)
	s.tick(ctx)
	s.wg.Wait()
	assert.Zero(t, job.runs.Load())
	assert.False(t, s.ListJobs()[0].Enabled)

	// Re-enabling schedules from the current time, not the missed run.
	require.NoError(t, s.SetEnabled("reset", true))
	assert.True(t, time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC).Equal(s.ListJobs()[0].NextRun))
}

func TestScheduler_NoOverlap(t *testing.T) {
	clock := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	s := New(Config{Logger: logger.Nop()})
	s.now = func() time.Time { return clock }

	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, newTestInterval(t)))

	ctx := context.Background()
	clock = clock.Add(time.Minute)
	s.tick(ctx)
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	_, err := s.RunNow(ctx, "slow")
	assert.ErrorIs(t, err, ErrJobRunning)

	clock = clock.Add(time.Minute)
	s.tick(ctx)
	close(job.block)
	s.wg.Wait()
	assert.Equal(t, int64(1), job.runs.Load())
}

func TestScheduler_RunNowRecordsHistory(t *testing.T) {
	s := New(Config{Logger: logger.Nop(), MaxHistorySize: 2})
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.RegisterSpec(failing, "@monthly"))

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	for i := 0; i < 3; i++ {
		res, err := s.RunNow(context.Background(), "failing")
		assert.EqualError(t, err, "boom")
		assert.False(t, res.Success)
		assert.True(t, res.Manual)
	}

	assert.Len(t, s.History(0), 2)
	info := s.ListJobs()[0]
	assert.Equal(t, int64(3), info.FailCount)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(Config{Logger: logger.Nop(), TickInterval: 5 * time.Millisecond})
	ctx := context.Background()

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(ctx), ErrSchedulerAlreadyRunning)
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func newTestInterval(t *testing.T) *IntervalSchedule {
	t.Helper()
	s, err := NewIntervalSchedule(time.Minute)
	require.NoError(t, err)
	return s
}
