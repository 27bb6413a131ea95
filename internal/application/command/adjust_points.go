package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD / REMOVE POINTS COMMANDS
// Direct ledger adjustments that are not tied to a tracked action
// (operator corrections, imports).
// ══════════════════════════════════════════════════════════════════════════════

// AwardPointsCommand credits points to a user.
type AwardPointsCommand struct {
	// UserID - the user to credit.
	UserID string

	// Points - points to credit, must be positive.
	Points int

	// Date - effective date (zero = today).
	Date time.Time

	// Reason - free-form reason for the log.
	Reason string
}

// Validate validates the command.
func (c AwardPointsCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("award_points: user_id is required")
	}
	if c.Points <= 0 {
		return shared.ErrInvalidPoints
	}
	return nil
}

// RemovePointsCommand debits points from a user.
type RemovePointsCommand struct {
	// UserID - the user to debit.
	UserID string

	// Points - points to remove, must be positive.
	Points int

	// Reason - free-form reason for the log.
	Reason string
}

// Validate validates the command.
func (c RemovePointsCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("remove_points: user_id is required")
	}
	if c.Points <= 0 {
		return shared.ErrInvalidPoints
	}
	return nil
}

// AdjustPointsHandler handles AwardPointsCommand and RemovePointsCommand.
type AdjustPointsHandler struct {
	ledger *Ledger
	logger *slog.Logger
}

// NewAdjustPointsHandler creates a new AdjustPointsHandler.
func NewAdjustPointsHandler(ledger *Ledger, logger *slog.Logger) *AdjustPointsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdjustPointsHandler{
		ledger: ledger,
		logger: logger.With("command", "adjust_points"),
	}
}

// Award executes AwardPointsCommand.
func (h *AdjustPointsHandler) Award(ctx context.Context, cmd AwardPointsCommand) (*AwardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("award_points: validation failed: %w", err)
	}

	result, err := h.ledger.Award(ctx, cmd.UserID, cmd.Points, cmd.Date)
	if err != nil {
		return nil, fmt.Errorf("award_points: %w", err)
	}

	h.logger.Info("points awarded",
		logger.UserID(cmd.UserID),
		logger.Points(cmd.Points),
		"reason", cmd.Reason,
		"total_points", result.Record.TotalPoints,
		"level", result.Record.Level.Int(),
	)
	return result, nil
}

// Remove executes RemovePointsCommand.
func (h *AdjustPointsHandler) Remove(ctx context.Context, cmd RemovePointsCommand) (*RemoveResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("remove_points: validation failed: %w", err)
	}

	result, err := h.ledger.Remove(ctx, cmd.UserID, cmd.Points)
	if err != nil {
		return nil, fmt.Errorf("remove_points: %w", err)
	}

	h.logger.Info("points removed",
		logger.UserID(cmd.UserID),
		logger.Points(cmd.Points),
		"reason", cmd.Reason,
		"applied", result.Applied,
	)
	return result, nil
}
