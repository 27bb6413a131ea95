package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HABIT COMMANDS
// Create a habit and mark or unmark it for a calendar day. Habit entries do
// not touch the points ledger; their statistics are computed on read.
// ══════════════════════════════════════════════════════════════════════════════

// CreateHabitCommand creates a habit.
type CreateHabitCommand struct {
	UserID      string
	Name        string
	Description string
	Frequency   string
	TargetCount int
	Color       string
}

// CompleteHabitCommand adds completions to a habit day.
type CompleteHabitCommand struct {
	// HabitID - the habit.
	HabitID int64

	// UserID - the caller; must own the habit.
	UserID string

	// Date - calendar day (zero = today).
	Date time.Time

	// Count - completions to add (0 = 1).
	Count int

	// Notes - replaces the entry notes when set.
	Notes *string
}

// Validate validates the command.
func (c CompleteHabitCommand) Validate() error {
	if c.HabitID <= 0 {
		return shared.ErrInvalidID
	}
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("complete_habit: user_id is required")
	}
	if c.Count < 0 {
		return shared.ErrInvalidHabitCount
	}
	return nil
}

// UncompleteHabitCommand removes one completion from a habit day.
type UncompleteHabitCommand struct {
	HabitID int64
	UserID  string
	Date    time.Time
}

// HabitEntryResult represents the entry after a change.
type HabitEntryResult struct {
	// Entry - the entry, nil when it was deleted.
	Entry *habit.Entry

	// Deleted - the entry was removed.
	Deleted bool
}

// HabitHandler handles habit commands.
type HabitHandler struct {
	habitRepo      habit.Repository
	txManager      TxManager
	locker         UserLocker
	eventPublisher shared.EventPublisher
	clock          timeutil.Clock
	logger         *slog.Logger
}

// NewHabitHandler creates a new HabitHandler.
func NewHabitHandler(
	habitRepo habit.Repository,
	txManager TxManager,
	locker UserLocker,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
	logger *slog.Logger,
) *HabitHandler {
	if txManager == nil {
		txManager = PassthroughTx{}
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HabitHandler{
		habitRepo:      habitRepo,
		txManager:      txManager,
		locker:         locker,
		eventPublisher: eventPublisher,
		clock:          clock,
		logger:         logger.With("command", "habit"),
	}
}

// Create executes CreateHabitCommand.
func (h *HabitHandler) Create(ctx context.Context, cmd CreateHabitCommand) (*habit.Habit, error) {
	hb, err := habit.NewHabit(habit.NewHabitParams{
		UserID:      cmd.UserID,
		Name:        cmd.Name,
		Description: cmd.Description,
		Frequency:   habit.Frequency(strings.ToLower(strings.TrimSpace(cmd.Frequency))),
		TargetCount: cmd.TargetCount,
		Color:       cmd.Color,
	}, h.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("create_habit: validation failed: %w", err)
	}

	if err := h.habitRepo.Create(ctx, hb); err != nil {
		return nil, fmt.Errorf("create_habit: save: %w", err)
	}

	h.logger.Info("habit created", logger.UserID(hb.UserID), logger.HabitID(hb.ID), "target_count", hb.TargetCount)
	return hb, nil
}

// Complete executes CompleteHabitCommand: the day's count grows by Count.
func (h *HabitHandler) Complete(ctx context.Context, cmd CompleteHabitCommand) (*HabitEntryResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_habit: validation failed: %w", err)
	}
	count := cmd.Count
	if count == 0 {
		count = 1
	}
	date := h.dateOrToday(cmd.Date)

	var result *HabitEntryResult
	err := h.withHabit(ctx, cmd.HabitID, cmd.UserID, func(ctx context.Context, hb *habit.Habit) error {
		entry, err := h.habitRepo.GetEntry(ctx, hb.ID, hb.UserID, date)
		switch {
		case shared.IsNotFound(err):
			entry = &habit.Entry{HabitID: hb.ID, UserID: hb.UserID, Date: date}
		case err != nil:
			return err
		}

		if err := entry.Increment(count, cmd.Notes); err != nil {
			return err
		}
		entry.UpdatedAt = h.clock.Now()
		if err := h.habitRepo.SaveEntry(ctx, entry); err != nil {
			return err
		}
		result = &HabitEntryResult{Entry: entry}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete_habit: %w", err)
	}

	h.publish(shared.NewHabitEntryChangedEvent(result.Entry.UserID, cmd.HabitID, date, result.Entry.Count))
	return result, nil
}

// Uncomplete executes UncompleteHabitCommand: the day's count drops by one
// and the entry is deleted once nothing is left.
func (h *HabitHandler) Uncomplete(ctx context.Context, cmd UncompleteHabitCommand) (*HabitEntryResult, error) {
	if cmd.HabitID <= 0 {
		return nil, fmt.Errorf("uncomplete_habit: validation failed: %w", shared.ErrInvalidID)
	}
	date := h.dateOrToday(cmd.Date)

	var result *HabitEntryResult
	err := h.withHabit(ctx, cmd.HabitID, cmd.UserID, func(ctx context.Context, hb *habit.Habit) error {
		entry, err := h.habitRepo.GetEntry(ctx, hb.ID, hb.UserID, date)
		if err != nil {
			return err
		}

		if entry.Decrement() {
			if err := h.habitRepo.DeleteEntry(ctx, hb.ID, hb.UserID, date); err != nil {
				return err
			}
			result = &HabitEntryResult{Deleted: true}
			return nil
		}

		entry.UpdatedAt = h.clock.Now()
		if err := h.habitRepo.SaveEntry(ctx, entry); err != nil {
			return err
		}
		result = &HabitEntryResult{Entry: entry}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("uncomplete_habit: %w", err)
	}

	count := 0
	if result.Entry != nil {
		count = result.Entry.Count
	}
	h.publish(shared.NewHabitEntryChangedEvent(cmd.UserID, cmd.HabitID, date, count))
	return result, nil
}

// withHabit loads the habit, checks ownership and runs fn under the owner's
// lock inside a transaction.
func (h *HabitHandler) withHabit(
	ctx context.Context,
	habitID int64,
	userID string,
	fn func(ctx context.Context, hb *habit.Habit) error,
) error {
	hb, err := h.habitRepo.GetByID(ctx, habitID)
	if err != nil {
		return err
	}
	if hb.UserID != strings.TrimSpace(userID) {
		return shared.ErrHabitForeignUser
	}

	unlock, err := h.locker.LockUser(ctx, hb.UserID)
	if err != nil {
		return fmt.Errorf("lock user %s: %w", hb.UserID, err)
	}
	defer unlock()

	return h.txManager.WithinTx(ctx, func(ctx context.Context) error {
		return fn(ctx, hb)
	})
}

func (h *HabitHandler) dateOrToday(d time.Time) time.Time {
	if d.IsZero() {
		return timeutil.Today(h.clock)
	}
	return timeutil.DateOf(d)
}

func (h *HabitHandler) publish(event shared.Event) {
	if h.eventPublisher == nil {
		return
	}
	if err := h.eventPublisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
