package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE GOAL COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateGoalCommand creates a points goal for a user.
type CreateGoalCommand struct {
	UserID       string
	Title        string
	Description  string
	TargetPoints int
	StartDate    time.Time
	EndDate      time.Time
	RewardType   string
	RewardName   string
	RewardIcon   string
	RewardColor  string
}

func (c CreateGoalCommand) params() goal.NewGoalParams {
	return goal.NewGoalParams{
		UserID:       c.UserID,
		Title:        c.Title,
		Description:  c.Description,
		TargetPoints: c.TargetPoints,
		StartDate:    timeutil.DateOf(c.StartDate),
		EndDate:      timeutil.DateOf(c.EndDate),
		RewardType:   goal.RewardType(c.RewardType),
		RewardName:   c.RewardName,
		RewardIcon:   c.RewardIcon,
		RewardColor:  c.RewardColor,
	}
}

// CreateGoalHandler handles CreateGoalCommand.
type CreateGoalHandler struct {
	goalRepo goal.Repository
	clock    timeutil.Clock
	logger   *slog.Logger
}

// NewCreateGoalHandler creates a new CreateGoalHandler.
func NewCreateGoalHandler(goalRepo goal.Repository, clock timeutil.Clock, logger *slog.Logger) *CreateGoalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateGoalHandler{
		goalRepo: goalRepo,
		clock:    clock,
		logger:   logger.With("command", "create_goal"),
	}
}

// Handle executes the command.
func (h *CreateGoalHandler) Handle(ctx context.Context, cmd CreateGoalCommand) (*goal.Goal, error) {
	if cmd.StartDate.IsZero() || cmd.EndDate.IsZero() {
		return nil, fmt.Errorf("create_goal: validation failed: %w", shared.ErrInvalidGoalWindow)
	}

	g, err := goal.NewGoal(cmd.params(), h.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("create_goal: validation failed: %w", err)
	}
	if err := h.goalRepo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create_goal: save: %w", err)
	}

	h.logger.Info("goal created",
		logger.UserID(g.UserID),
		logger.GoalID(g.ID),
		"target_points", g.TargetPoints,
		"start_date", timeutil.FormatDate(g.StartDate),
		"end_date", timeutil.FormatDate(g.EndDate),
	)
	return g, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECK GOAL COMMAND
// Speculative unlock check for one goal. Safe to repeat: an achieved goal
// is never unlocked again and never pays a second bonus.
// ══════════════════════════════════════════════════════════════════════════════

// CheckGoalCommand requests an unlock check for a goal.
type CheckGoalCommand struct {
	// GoalID - the goal to check.
	GoalID int64

	// Today - evaluation date (zero = today).
	Today time.Time
}

// CheckGoalHandler handles CheckGoalCommand.
type CheckGoalHandler struct {
	ledger   *Ledger
	goalRepo goal.Repository
	logger   *slog.Logger
}

// NewCheckGoalHandler creates a new CheckGoalHandler.
func NewCheckGoalHandler(ledger *Ledger, goalRepo goal.Repository, logger *slog.Logger) *CheckGoalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckGoalHandler{
		ledger:   ledger,
		goalRepo: goalRepo,
		logger:   logger.With("command", "check_goal"),
	}
}

// Handle executes the command.
func (h *CheckGoalHandler) Handle(ctx context.Context, cmd CheckGoalCommand) (*AwardResult, error) {
	if cmd.GoalID <= 0 {
		return nil, fmt.Errorf("check_goal: validation failed: %w", shared.ErrInvalidID)
	}

	owner, err := h.goalRepo.GetByID(ctx, cmd.GoalID)
	if err != nil {
		return nil, fmt.Errorf("check_goal: %w", err)
	}

	var result *AwardResult
	err = h.ledger.Execute(ctx, "check_goal", owner.UserID, cmd.Today, func(ctx context.Context, s *Session) error {
		g, err := h.goalRepo.GetByID(ctx, cmd.GoalID)
		if err != nil {
			return err
		}
		result, err = s.CheckGoal(g)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("check_goal: %w", err)
	}

	h.logger.Debug("goal checked",
		logger.GoalID(cmd.GoalID),
		logger.UserID(owner.UserID),
		"unlocked", len(result.Unlocked),
	)
	return result, nil
}
