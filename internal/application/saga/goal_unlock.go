// Package saga contains multi-step business processes that orchestrate
// several domain operations inside one user's critical section.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL UNLOCK SAGA
// Flow: Load Active Goals → Evaluate Window Points → Mark Achieved →
//
//	Create Achievement → Award Bonus → Re-queue Remaining Goals
//
// Goals are processed from an explicit work-list in ascending id order.
// A bonus award re-queues every still-unachieved goal of the user, and the
// achieved flag guards each goal against a second unlock.
// ══════════════════════════════════════════════════════════════════════════════

// BonusAwarder credits a goal bonus through the points ledger. It must not
// start another unlock run; the work-list takes care of re-evaluation.
type BonusAwarder func(ctx context.Context, g *goal.Goal, bonus int) error

// Unlocked describes one goal unlocked during a run.
type Unlocked struct {
	// Goal - the goal after it was marked achieved.
	Goal *goal.Goal

	// Achievement - the achievement record created for the goal.
	Achievement *goal.Achievement

	// Bonus - bonus points granted for the unlock.
	Bonus int
}

// UnlockInput contains the data needed for one unlock run.
type UnlockInput struct {
	// UserID - owner of the goals.
	UserID string

	// Today - date used for the active-goal window.
	Today time.Time

	// Now - timestamp recorded as achieved_at.
	Now time.Time
}

// Validate checks if the input is valid.
func (i UnlockInput) Validate() error {
	if i.UserID == "" {
		return errors.New("goal_unlock: user id is required")
	}
	if i.Today.IsZero() {
		return errors.New("goal_unlock: today is required")
	}
	return nil
}

// GoalUnlocker evaluates goals and unlocks those whose target is reached.
type GoalUnlocker struct {
	goalRepo        goal.Repository
	achievementRepo goal.AchievementRepository
	actionRepo      activity.Repository
	logger          *slog.Logger
}

// NewGoalUnlocker creates a new GoalUnlocker.
func NewGoalUnlocker(
	goalRepo goal.Repository,
	achievementRepo goal.AchievementRepository,
	actionRepo activity.Repository,
	logger *slog.Logger,
) *GoalUnlocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoalUnlocker{
		goalRepo:        goalRepo,
		achievementRepo: achievementRepo,
		actionRepo:      actionRepo,
		logger:          logger.With("saga", "goal_unlock"),
	}
}

// Run evaluates every active goal of the user.
func (u *GoalUnlocker) Run(ctx context.Context, input UnlockInput, award BonusAwarder) ([]Unlocked, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	active, err := u.goalRepo.ListActive(ctx, input.UserID, input.Today)
	if err != nil {
		return nil, fmt.Errorf("goal_unlock: list active goals: %w", err)
	}
	return u.process(ctx, input, active, active, award)
}

// RunFor evaluates a single goal. If its unlock grants a bonus, the user's
// other active goals are evaluated afterwards.
func (u *GoalUnlocker) RunFor(ctx context.Context, input UnlockInput, g *goal.Goal, award BonusAwarder) ([]Unlocked, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if g.Achieved {
		return nil, nil
	}

	active, err := u.goalRepo.ListActive(ctx, input.UserID, input.Today)
	if err != nil {
		return nil, fmt.Errorf("goal_unlock: list active goals: %w", err)
	}
	return u.process(ctx, input, []*goal.Goal{g}, active, award)
}

// process drains the work-list. initial goals are queued first; pool is the
// set re-queued after each bonus award.
func (u *GoalUnlocker) process(
	ctx context.Context,
	input UnlockInput,
	initial, pool []*goal.Goal,
	award BonusAwarder,
) ([]Unlocked, error) {
	byID := make(map[int64]*goal.Goal, len(pool)+len(initial))
	for _, g := range pool {
		byID[g.ID] = g
	}
	for _, g := range initial {
		byID[g.ID] = g
	}

	order := make([]int64, 0, len(byID))
	for id := range byID {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	queue := newWorklist()
	for _, g := range sortedByID(initial) {
		queue.push(g.ID)
	}

	sums := make(map[string]int)
	var unlocked []Unlocked

	for {
		id, ok := queue.pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return unlocked, err
		}

		g := byID[id]
		result, err := u.checkAndAchieve(ctx, g, input.Now, sums)
		if err != nil {
			return unlocked, err
		}
		if result == nil {
			continue
		}

		if result.Bonus > 0 && award != nil {
			if err := award(ctx, g, result.Bonus); err != nil {
				return unlocked, fmt.Errorf("goal_unlock: award bonus for goal %d: %w", g.ID, err)
			}
			for _, other := range order {
				if !byID[other].Achieved {
					queue.push(other)
				}
			}
		}

		u.logger.Info("goal unlocked",
			logger.UserID(g.UserID),
			logger.GoalID(g.ID),
			"target_points", g.TargetPoints,
			"bonus", result.Bonus,
		)
		unlocked = append(unlocked, *result)
	}

	return unlocked, nil
}

// checkAndAchieve unlocks g once. A goal that is already achieved, or whose
// window has not reached the target, is left untouched and nil is returned.
func (u *GoalUnlocker) checkAndAchieve(ctx context.Context, g *goal.Goal, now time.Time, sums map[string]int) (*Unlocked, error) {
	if g.Achieved {
		return nil, nil
	}

	points, err := u.pointsInWindow(ctx, g, sums)
	if err != nil {
		return nil, err
	}
	if !g.Evaluate(points).Achievable {
		return nil, nil
	}

	if err := u.goalRepo.MarkAchieved(ctx, g.ID, now); err != nil {
		if errors.Is(err, shared.ErrGoalAlreadyAchieved) {
			g.Achieved = true
			return nil, nil
		}
		return nil, fmt.Errorf("goal_unlock: mark goal %d achieved: %w", g.ID, err)
	}
	_ = g.MarkAchieved(now)

	// A failed insert would abort the surrounding postgres transaction,
	// so look the achievement up first.
	if existing, err := u.achievementRepo.GetByGoal(ctx, g.ID); err == nil {
		u.logger.Warn("achievement already present for unachieved goal", logger.GoalID(g.ID), "achievement_id", existing.ID)
		return nil, nil
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("goal_unlock: find achievement for goal %d: %w", g.ID, err)
	}

	achievement := goal.NewAchievementForGoal(g, now)
	if err := u.achievementRepo.Create(ctx, achievement); err != nil {
		if errors.Is(err, shared.ErrAchievementExists) {
			u.logger.Warn("achievement already present for unachieved goal", logger.GoalID(g.ID))
			return nil, nil
		}
		return nil, fmt.Errorf("goal_unlock: create achievement for goal %d: %w", g.ID, err)
	}

	return &Unlocked{
		Goal:        g,
		Achievement: achievement,
		Bonus:       g.BonusPoints(),
	}, nil
}

// pointsInWindow sums completed action points for the goal window. Action
// history does not change during a run, so sums are cached per window.
func (u *GoalUnlocker) pointsInWindow(ctx context.Context, g *goal.Goal, sums map[string]int) (int, error) {
	window := g.Window()
	key := timeutil.FormatDate(window.From) + "/" + timeutil.FormatDate(window.To)
	if v, ok := sums[key]; ok {
		return v, nil
	}

	v, err := u.actionRepo.SumCompletedPoints(ctx, g.UserID, window)
	if err != nil {
		return 0, fmt.Errorf("goal_unlock: sum window points for goal %d: %w", g.ID, err)
	}
	sums[key] = v
	return v, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Work-list
// ─────────────────────────────────────────────────────────────────────────────

type worklist struct {
	items   []int64
	pending map[int64]bool
}

func newWorklist() *worklist {
	return &worklist{pending: make(map[int64]bool)}
}

// push enqueues id unless it is already waiting.
func (w *worklist) push(id int64) {
	if w.pending[id] {
		return
	}
	w.pending[id] = true
	w.items = append(w.items, id)
}

func (w *worklist) pop() (int64, bool) {
	if len(w.items) == 0 {
		return 0, false
	}
	id := w.items[0]
	w.items = w.items[1:]
	delete(w.pending, id)
	return id, true
}

func sortedByID(goals []*goal.Goal) []*goal.Goal {
	out := make([]*goal.Goal, len(goals))
	copy(out, goals)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
