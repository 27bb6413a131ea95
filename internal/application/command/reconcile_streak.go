package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE STREAK COMMAND
// Streak decay: a user with no activity today and none yesterday loses the
// streak. Runs for one user or, with an empty UserID, for every stale streak.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileStreakCommand requests streak reconciliation.
type ReconcileStreakCommand struct {
	// UserID - a single user; empty means all stale streaks.
	UserID string

	// Today - reconciliation date (zero = today).
	Today time.Time
}

// ReconcileStreakResult represents the result of reconciliation.
type ReconcileStreakResult struct {
	// Checked - users examined.
	Checked int

	// Reset - streaks reset to zero.
	Reset int

	// Failed - users whose reconciliation returned an error.
	Failed int
}

// ReconcileStreakConfig contains configuration for the handler.
type ReconcileStreakConfig struct {
	// BatchSize - users fetched per storage round trip.
	BatchSize int
}

// DefaultReconcileStreakConfig returns default configuration.
func DefaultReconcileStreakConfig() ReconcileStreakConfig {
	return ReconcileStreakConfig{BatchSize: 200}
}

// ReconcileStreakHandler handles ReconcileStreakCommand.
type ReconcileStreakHandler struct {
	ledger       *Ledger
	progressRepo progress.Repository
	logger       *slog.Logger
	config       ReconcileStreakConfig
}

// NewReconcileStreakHandler creates a new ReconcileStreakHandler.
func NewReconcileStreakHandler(
	ledger *Ledger,
	progressRepo progress.Repository,
	logger *slog.Logger,
	config ReconcileStreakConfig,
) *ReconcileStreakHandler {
	if config.BatchSize <= 0 {
		config = DefaultReconcileStreakConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileStreakHandler{
		ledger:       ledger,
		progressRepo: progressRepo,
		logger:       logger.With("command", "reconcile_streak"),
		config:       config,
	}
}

// Handle executes the command.
func (h *ReconcileStreakHandler) Handle(ctx context.Context, cmd ReconcileStreakCommand) (*ReconcileStreakResult, error) {
	today := cmd.Today
	if today.IsZero() {
		today = timeutil.Today(h.ledger.Clock())
	}
	today = timeutil.DateOf(today)

	result := &ReconcileStreakResult{}

	if userID := strings.TrimSpace(cmd.UserID); userID != "" {
		reset, err := h.reconcileUser(ctx, userID, today)
		if err != nil {
			return nil, fmt.Errorf("reconcile_streak: %w", err)
		}
		result.Checked = 1
		if reset {
			result.Reset = 1
		}
		return result, nil
	}

	seen := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := h.progressRepo.FindStaleStreaks(ctx, today, h.config.BatchSize)
		if err != nil {
			return result, fmt.Errorf("reconcile_streak: find stale streaks: %w", err)
		}

		fresh := 0
		for _, userID := range batch {
			if seen[userID] {
				continue
			}
			seen[userID] = true
			fresh++
			result.Checked++

			reset, err := h.reconcileUser(ctx, userID, today)
			if err != nil {
				result.Failed++
				h.logger.Warn("failed to reconcile streak", logger.UserID(userID), "error", err)
				continue
			}
			if reset {
				result.Reset++
			}
		}

		if fresh == 0 || len(batch) < h.config.BatchSize {
			break
		}
	}

	h.logger.Info("streaks reconciled",
		"date", timeutil.FormatDate(today),
		"checked", result.Checked,
		"reset", result.Reset,
		"failed", result.Failed,
	)
	return result, nil
}

func (h *ReconcileStreakHandler) reconcileUser(ctx context.Context, userID string, today time.Time) (bool, error) {
	var reset bool
	err := h.ledger.Execute(ctx, "reconcile_streak", userID, today, func(ctx context.Context, s *Session) error {
		var err error
		reset, err = s.ReconcileStreak()
		return err
	})
	return reset, err
}
