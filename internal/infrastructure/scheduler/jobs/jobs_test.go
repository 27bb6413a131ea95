package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/scheduler"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

type fakeResetter struct {
	periods []string
	err     error
}

func (f *fakeResetter) Handle(_ context.Context, cmd command.ResetPeriodPointsCommand) (*command.ResetPeriodPointsResult, error) {
	f.periods = append(f.periods, cmd.Period)
	if f.err != nil {
		return nil, f.err
	}
	return &command.ResetPeriodPointsResult{Period: shared.Period(cmd.Period), Affected: 3}, nil
}

type fakeReconciler struct {
	cmds   []command.ReconcileStreakCommand
	result command.ReconcileStreakResult
}

func (f *fakeReconciler) Handle(_ context.Context, cmd command.ReconcileStreakCommand) (*command.ReconcileStreakResult, error) {
	f.cmds = append(f.cmds, cmd)
	res := f.result
	return &res, nil
}

func TestResetPeriodJob(t *testing.T) {
	r := &fakeResetter{}
	job := NewResetPeriodJob(r, shared.PeriodWeekly, 0, logger.Nop())

	assert.Equal(t, "reset_weekly_points", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"weekly"}, r.periods)

	r.err = errors.New("db down")
	assert.ErrorContains(t, job.Run(context.Background()), "db down")
}

func TestDefaultResetSchedules_Parse(t *testing.T) {
	s := scheduler.New(scheduler.Config{Logger: logger.Nop()})
	for period, spec := range DefaultResetSchedules {
		require.NoError(t, s.RegisterSpec(NewResetPeriodJob(&fakeResetter{}, period, 0, logger.Nop()), spec))
	}
	require.NoError(t, s.RegisterSpec(NewReconcileStreaksJob(&fakeReconciler{}, 0, logger.Nop()), DefaultReconcileSchedule))
	assert.Len(t, s.ListJobs(), 4)
}

func TestReconcileStreaksJob(t *testing.T) {
	r := &fakeReconciler{result: command.ReconcileStreakResult{Checked: 4, Reset: 2}}
	job := NewReconcileStreaksJob(r, 0, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, r.cmds, 1)
	assert.Empty(t, r.cmds[0].UserID)
	assert.True(t, r.cmds[0].Today.IsZero())

	r.result.Failed = 1
	assert.ErrorContains(t, job.Run(context.Background()), "1 of 4 users failed")
}
