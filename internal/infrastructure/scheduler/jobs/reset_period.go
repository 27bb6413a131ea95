// Package jobs contains the engine's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET PERIOD JOB
// ══════════════════════════════════════════════════════════════════════════════

// PeriodResetter is satisfied by *command.ResetPeriodPointsHandler.
type PeriodResetter interface {
	Handle(ctx context.Context, cmd command.ResetPeriodPointsCommand) (*command.ResetPeriodPointsResult, error)
}

// ResetPeriodJob zeroes one periodic points counter for every user.
type ResetPeriodJob struct {
	resetter PeriodResetter
	period   shared.Period
	timeout  time.Duration
	logger   *slog.Logger
}

// DefaultResetSchedules maps each period to the cron expression it resets on,
// evaluated in the engine time zone.
var DefaultResetSchedules = map[shared.Period]string{
	shared.PeriodDaily:   "0 0 * * *",
	shared.PeriodWeekly:  "0 0 * * 1",
	shared.PeriodMonthly: "0 0 1 * *",
}

// NewResetPeriodJob creates a reset job for one period.
func NewResetPeriodJob(resetter PeriodResetter, period shared.Period, timeout time.Duration, logger *slog.Logger) *ResetPeriodJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ResetPeriodJob{
		resetter: resetter,
		period:   period,
		timeout:  timeout,
		logger:   logger.With("job", "reset_"+string(period)),
	}
}

// Name returns the job name.
func (j *ResetPeriodJob) Name() string {
	return "reset_" + string(j.period) + "_points"
}

// Description returns a human-readable description.
func (j *ResetPeriodJob) Description() string {
	return fmt.Sprintf("Zeroes %s points for all users", j.period)
}

// Run executes the reset.
func (j *ResetPeriodJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	res, err := j.resetter.Handle(ctx, command.ResetPeriodPointsCommand{Period: string(j.period)})
	if err != nil {
		return fmt.Errorf("reset %s points: %w", j.period, err)
	}
	j.logger.Info("period reset done", "affected", res.Affected)
	return nil
}
