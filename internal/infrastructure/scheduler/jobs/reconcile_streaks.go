package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE STREAKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// StreakReconciler is satisfied by *command.ReconcileStreakHandler.
type StreakReconciler interface {
	Handle(ctx context.Context, cmd command.ReconcileStreakCommand) (*command.ReconcileStreakResult, error)
}

const (
	// ReconcileStreaksJobName is the scheduler key of the job.
	ReconcileStreaksJobName = "reconcile_streaks"

	// DefaultReconcileSchedule runs shortly after the daily reset.
	DefaultReconcileSchedule = "5 0 * * *"
)

// ReconcileStreaksJob resets every streak whose last activity is older
// than yesterday.
type ReconcileStreaksJob struct {
	reconciler StreakReconciler
	timeout    time.Duration
	logger     *slog.Logger
}

// NewReconcileStreaksJob creates the job.
func NewReconcileStreaksJob(reconciler StreakReconciler, timeout time.Duration, logger *slog.Logger) *ReconcileStreaksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &ReconcileStreaksJob{
		reconciler: reconciler,
		timeout:    timeout,
		logger:     logger.With("job", ReconcileStreaksJobName),
	}
}

// Name returns the job name.
func (j *ReconcileStreaksJob) Name() string {
	return ReconcileStreaksJobName
}

// Description returns a human-readable description.
func (j *ReconcileStreaksJob) Description() string {
	return "Resets streaks of users inactive since before yesterday"
}

// Run reconciles all stale streaks. Individual failures are logged by the
// handler; the run fails only if some user could not be reconciled.
func (j *ReconcileStreaksJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	res, err := j.reconciler.Handle(ctx, command.ReconcileStreakCommand{})
	if err != nil {
		return fmt.Errorf("reconcile streaks: %w", err)
	}

	j.logger.Info("streaks reconciled", "checked", res.Checked, "reset", res.Reset, "failed", res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("reconcile streaks: %d of %d users failed", res.Failed, res.Checked)
	}
	return nil
}
