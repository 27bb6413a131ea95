package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REVOKE COMPLETION COMMAND
// Handles "an action was un-completed". Removes the action's points from
// the ledger. Unlocked goals and their bonuses are never revoked.
// ══════════════════════════════════════════════════════════════════════════════

// RevokeCompletionCommand represents an action that was marked incomplete.
type RevokeCompletionCommand struct {
	// UserID - the action owner.
	UserID string

	// ActionID - the action id. When empty Points must be set.
	ActionID string

	// Points - points to remove (0 = the stored action value).
	Points int
}

// Validate validates the command.
func (c RevokeCompletionCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("revoke_completion: user_id is required")
	}
	if c.Points < 0 {
		return shared.ErrInvalidPoints
	}
	if strings.TrimSpace(c.ActionID) == "" && c.Points == 0 {
		return errors.New("revoke_completion: action_id or points is required")
	}
	return nil
}

// RevokeCompletionResult represents the result of a revocation.
type RevokeCompletionResult struct {
	// NotCompleted - the action was not completed; nothing changed.
	NotCompleted bool

	// Removal - ledger result, nil when nothing was removed.
	Removal *RemoveResult
}

// RevokeCompletionHandler handles RevokeCompletionCommand.
type RevokeCompletionHandler struct {
	ledger     *Ledger
	actionRepo activity.Repository
	logger     *slog.Logger
}

// NewRevokeCompletionHandler creates a new RevokeCompletionHandler.
func NewRevokeCompletionHandler(ledger *Ledger, actionRepo activity.Repository, logger *slog.Logger) *RevokeCompletionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RevokeCompletionHandler{
		ledger:     ledger,
		actionRepo: actionRepo,
		logger:     logger.With("command", "revoke_completion"),
	}
}

// Handle executes the command.
func (h *RevokeCompletionHandler) Handle(ctx context.Context, cmd RevokeCompletionCommand) (*RevokeCompletionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("revoke_completion: validation failed: %w", err)
	}

	userID := strings.TrimSpace(cmd.UserID)
	actionID := strings.TrimSpace(cmd.ActionID)

	var result *RevokeCompletionResult
	err := h.ledger.Execute(ctx, "revoke_completion", userID, time.Time{}, func(ctx context.Context, s *Session) error {
		result = &RevokeCompletionResult{}
		points := cmd.Points

		if actionID != "" {
			action, err := h.actionRepo.Get(ctx, actionID)
			switch {
			case shared.IsNotFound(err):
				if points == 0 {
					return shared.ErrActionNotFound
				}
			case err != nil:
				return fmt.Errorf("load action: %w", err)
			case action.UserID != userID:
				return shared.NewDomainError("activity", "Uncomplete", shared.ErrPreconditionViolation,
					"action belongs to another user")
			default:
				if !action.MarkIncomplete() {
					result.NotCompleted = true
					return nil
				}
				action.UpdatedAt = s.Now()
				if err := h.actionRepo.Save(ctx, action); err != nil {
					return fmt.Errorf("save action: %w", err)
				}
				if points == 0 {
					points = action.Points
				}
			}
		}

		if points <= 0 {
			return nil
		}
		removal, err := s.Remove(points, actionID)
		if err != nil {
			return err
		}
		result.Removal = removal
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("revoke_completion: %w", err)
	}

	if result.Removal != nil {
		h.logger.Info("completion revoked",
			logger.UserID(userID),
			"action_id", actionID,
			logger.Points(result.Removal.Requested),
			"applied", result.Removal.Applied,
		)
	}
	return result, nil
}
