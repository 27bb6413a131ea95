package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD COMPLETION COMMAND
// Handles "an action was completed" from the task/habit collaborator.
// Stores the action as completed and awards its points through the ledger.
// Redelivery of the same action id does not award twice.
// ══════════════════════════════════════════════════════════════════════════════

// RecordCompletionCommand represents a completed task or habit action.
type RecordCompletionCommand struct {
	// UserID - the user who completed the action.
	UserID string

	// ActionID - the collaborator's id for the action. Generated when empty.
	ActionID string

	// Kind - "task" or "habit" (empty = task).
	Kind string

	// Title - optional action title.
	Title string

	// Points - points value of the action (0 = default task points).
	Points int

	// CompletedOn - completion date (zero = today). It only places the
	// action into goal windows; streak and last activity follow the clock.
	CompletedOn time.Time
}

// Validate validates the command.
func (c RecordCompletionCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("record_completion: user_id is required")
	}
	if c.Points < 0 {
		return shared.ErrInvalidPoints
	}
	if _, err := activity.ParseKind(c.Kind); err != nil {
		return err
	}
	return nil
}

// RecordCompletionResult represents the result of recording a completion.
type RecordCompletionResult struct {
	// ActionID - id of the stored action.
	ActionID string

	// Duplicate - the action was already completed; nothing changed.
	Duplicate bool

	// Award - ledger result, nil for duplicates.
	Award *AwardResult
}

// RecordCompletionHandler handles RecordCompletionCommand.
type RecordCompletionHandler struct {
	ledger     *Ledger
	actionRepo activity.Repository
	logger     *slog.Logger
	config     RecordCompletionConfig
}

// RecordCompletionConfig contains configuration for the handler.
type RecordCompletionConfig struct {
	// DefaultPoints - points for actions that carry no value.
	DefaultPoints int
}

// DefaultRecordCompletionConfig returns default configuration.
func DefaultRecordCompletionConfig() RecordCompletionConfig {
	return RecordCompletionConfig{DefaultPoints: activity.DefaultTaskPoints}
}

// NewRecordCompletionHandler creates a new RecordCompletionHandler.
func NewRecordCompletionHandler(
	ledger *Ledger,
	actionRepo activity.Repository,
	logger *slog.Logger,
	config RecordCompletionConfig,
) *RecordCompletionHandler {
	if config.DefaultPoints <= 0 {
		config = DefaultRecordCompletionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordCompletionHandler{
		ledger:     ledger,
		actionRepo: actionRepo,
		logger:     logger.With("command", "record_completion"),
		config:     config,
	}
}

// Handle executes the command.
func (h *RecordCompletionHandler) Handle(ctx context.Context, cmd RecordCompletionCommand) (*RecordCompletionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_completion: validation failed: %w", err)
	}

	kind, _ := activity.ParseKind(cmd.Kind)
	userID := strings.TrimSpace(cmd.UserID)
	actionID := strings.TrimSpace(cmd.ActionID)
	if actionID == "" {
		actionID = uuid.NewString()
	}

	var result *RecordCompletionResult
	err := h.ledger.Execute(ctx, "record_completion", userID, time.Time{}, func(ctx context.Context, s *Session) error {
		result = &RecordCompletionResult{ActionID: actionID}

		completedOn := s.Today()
		if !cmd.CompletedOn.IsZero() && cmd.CompletedOn.Before(completedOn) {
			completedOn = timeutil.DateOf(cmd.CompletedOn)
		}

		action, err := h.actionRepo.Get(ctx, actionID)
		switch {
		case shared.IsNotFound(err):
			action = &activity.Action{
				ID:     actionID,
				UserID: userID,
				Kind:   kind,
				Title:  cmd.Title,
				Points: h.config.DefaultPoints,
			}
		case err != nil:
			return fmt.Errorf("load action: %w", err)
		case action.UserID != userID:
			return shared.NewDomainError("activity", "Complete", shared.ErrPreconditionViolation,
				"action belongs to another user")
		}

		if cmd.Points > 0 {
			action.Points = cmd.Points
		}
		if !action.MarkCompleted(completedOn) {
			result.Duplicate = true
			return nil
		}
		action.UpdatedAt = s.Now()

		if err := h.actionRepo.Save(ctx, action); err != nil {
			return fmt.Errorf("save action: %w", err)
		}

		award, err := s.Award(action.Points, SourceAction+":"+string(action.Kind), action.ID)
		if err != nil {
			return err
		}
		result.Award = award
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record_completion: %w", err)
	}

	if result.Duplicate {
		h.logger.Debug("completion already recorded", logger.UserID(userID), "action_id", actionID)
	} else {
		h.logger.Info("completion recorded",
			logger.UserID(userID),
			"action_id", actionID,
			logger.Points(result.Award.Points),
			"bonus_points", result.Award.BonusPoints,
			"level_ups", len(result.Award.LevelUps),
			"goals_unlocked", len(result.Award.Unlocked),
		)
	}
	return result, nil
}
