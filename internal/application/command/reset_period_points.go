package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET PERIOD POINTS COMMAND
// Zeroes daily, weekly or monthly points for every user. The bulk update
// bumps record versions, so a concurrent ledger section retries on top of
// the reset instead of overwriting it.
// ══════════════════════════════════════════════════════════════════════════════

// ResetPeriodPointsCommand requests a periodic counter reset.
type ResetPeriodPointsCommand struct {
	// Period - "daily", "weekly" or "monthly".
	Period string
}

// ResetPeriodPointsResult represents the result of a reset.
type ResetPeriodPointsResult struct {
	Period   shared.Period
	Affected int64
	// Users is the number of progress records after the reset.
	Users int
}

// ResetPeriodPointsHandler handles ResetPeriodPointsCommand.
type ResetPeriodPointsHandler struct {
	progressRepo   progress.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewResetPeriodPointsHandler creates a new ResetPeriodPointsHandler.
func NewResetPeriodPointsHandler(
	progressRepo progress.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *ResetPeriodPointsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetPeriodPointsHandler{
		progressRepo:   progressRepo,
		eventPublisher: eventPublisher,
		logger:         logger.With("command", "reset_period_points"),
	}
}

// Handle executes the command.
func (h *ResetPeriodPointsHandler) Handle(ctx context.Context, cmd ResetPeriodPointsCommand) (*ResetPeriodPointsResult, error) {
	period, err := shared.ParsePeriod(cmd.Period)
	if err != nil {
		return nil, fmt.Errorf("reset_period_points: validation failed: %w", err)
	}

	affected, err := h.progressRepo.ResetPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("reset_period_points: %w", err)
	}

	if h.eventPublisher != nil {
		if err := h.eventPublisher.Publish(shared.NewPeriodPointsResetEvent(string(period), affected)); err != nil {
			h.logger.Warn("failed to publish reset event", "period", period, "error", err)
		}
	}

	users, err := h.progressRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset_period_points: count: %w", err)
	}

	h.logger.Info("period points reset", "period", period, "affected", affected, "users", users)
	return &ResetPeriodPointsResult{Period: period, Affected: affected, Users: users}, nil
}
