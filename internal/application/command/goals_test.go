package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

func (f *fixture) createGoal(t *testing.T, userID string, target int, from, to time.Time) *goal.Goal {
	t.Helper()
	h := command.NewCreateGoalHandler(f.store.Goals(), f.clock, logger.Nop())
	g, err := h.Handle(context.Background(), command.CreateGoalCommand{
		UserID:       userID,
		Title:        "goal",
		TargetPoints: target,
		StartDate:    from,
		EndDate:      to,
	})
	require.NoError(t, err)
	return g
}

func (f *fixture) complete(t *testing.T, userID, actionID string, points int, on time.Time) *command.RecordCompletionResult {
	t.Helper()
	h := command.NewRecordCompletionHandler(f.ledger, f.store.Actions(), logger.Nop(), command.DefaultRecordCompletionConfig())
	res, err := h.Handle(context.Background(), command.RecordCompletionCommand{
		UserID:      userID,
		ActionID:    actionID,
		Points:      points,
		CompletedOn: on,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) achievements(t *testing.T, userID string) int {
	t.Helper()
	n, err := f.store.Achievements().CountByUser(context.Background(), userID)
	require.NoError(t, err)
	return n
}

func TestRecordCompletion_UnlocksGoalOnce(t *testing.T) {
	f := newFixture(t)
	g := f.createGoal(t, "u1", 100, day(2025, 10, 1), day(2025, 10, 31))

	first := f.complete(t, "u1", "a1", 60, day(2025, 10, 14))
	assert.Empty(t, first.Award.Unlocked)

	second := f.complete(t, "u1", "a2", 60, day(2025, 10, 15))
	require.Len(t, second.Award.Unlocked, 1)
	assert.Equal(t, g.ID, second.Award.Unlocked[0].Goal.ID)
	assert.Equal(t, 20, second.Award.BonusPoints)

	r := f.record(t, "u1")
	assert.Equal(t, 120+20, r.TotalPoints)
	assert.Equal(t, 120+20, r.Experience, "goal bonus is an ordinary award")

	stored, err := f.store.Goals().GetByID(context.Background(), g.ID)
	require.NoError(t, err)
	assert.True(t, stored.Achieved)
	require.NotNil(t, stored.AchievedAt)

	a, err := f.store.Achievements().GetByGoal(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, a.PointsEarned)

	f.complete(t, "u1", "a3", 50, day(2025, 10, 15))
	assert.Equal(t, 1, f.achievements(t, "u1"))
	assert.Equal(t, 1, f.events.count(shared.EventGoalAchieved))
}

func TestRecordCompletion_OutsideWindowDoesNotCount(t *testing.T) {
	f := newFixture(t)
	f.createGoal(t, "u1", 50, day(2025, 10, 10), day(2025, 10, 31))

	f.complete(t, "u1", "old", 100, day(2025, 10, 9))
	assert.Zero(t, f.achievements(t, "u1"))
}

func TestRecordCompletion_LateDeliveryKeepsStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.createGoal(t, "u1", 10, day(2025, 10, 1), day(2025, 10, 14))

	_, err := f.ledger.Award(ctx, "u1", 10, day(2025, 10, 14))
	require.NoError(t, err)
	f.complete(t, "u1", "a1", 10, time.Time{})
	require.Equal(t, 2, f.record(t, "u1").StreakDays)

	// redelivered with yesterday's date
	f.complete(t, "u1", "late", 10, day(2025, 10, 14))

	r := f.record(t, "u1")
	assert.Equal(t, 2, r.StreakDays)
	assert.Equal(t, day(2025, 10, 15), r.LastActivityDate)
	assert.Equal(t, 30, r.TotalPoints)

	a, err := f.store.Actions().Get(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, day(2025, 10, 14), a.CompletedAt)

	// the late action falls in the window, but the goal closed yesterday
	stored, err := f.store.Goals().GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, stored.Achieved)
}

func TestRecordCompletion_DuplicateActionIsNoOp(t *testing.T) {
	f := newFixture(t)

	f.complete(t, "u1", "a1", 10, time.Time{})
	dup := f.complete(t, "u1", "a1", 10, time.Time{})

	assert.True(t, dup.Duplicate)
	assert.Nil(t, dup.Award)
	assert.Equal(t, 10, f.record(t, "u1").TotalPoints)
}

func TestRecordCompletion_DefaultsAndGeneratedID(t *testing.T) {
	f := newFixture(t)

	res := f.complete(t, "u1", "", 0, time.Time{})
	assert.NotEmpty(t, res.ActionID)
	assert.Equal(t, 10, f.record(t, "u1").TotalPoints)

	a, err := f.store.Actions().Get(context.Background(), res.ActionID)
	require.NoError(t, err)
	assert.True(t, a.Completed)
	assert.Equal(t, day(2025, 10, 15), a.CompletedAt)
}

func TestRevokeCompletion_KeepsAchievement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.createGoal(t, "u1", 100, day(2025, 10, 1), day(2025, 10, 31))
	f.complete(t, "u1", "a1", 100, time.Time{})

	h := command.NewRevokeCompletionHandler(f.ledger, f.store.Actions(), logger.Nop())
	res, err := h.Handle(ctx, command.RevokeCompletionCommand{UserID: "u1", ActionID: "a1"})
	require.NoError(t, err)
	require.NotNil(t, res.Removal)
	assert.Equal(t, 100, res.Removal.Requested)

	r := f.record(t, "u1")
	assert.Equal(t, 20, r.TotalPoints, "only the goal bonus remains")
	assert.Equal(t, 20, r.Experience)

	stored, err := f.store.Goals().GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, stored.Achieved)
	assert.Equal(t, 1, f.achievements(t, "u1"))

	again, err := h.Handle(ctx, command.RevokeCompletionCommand{UserID: "u1", ActionID: "a1"})
	require.NoError(t, err)
	assert.True(t, again.NotCompleted)
	assert.Equal(t, 20, f.record(t, "u1").TotalPoints)
}

func TestRevokeCompletion_ForeignAction(t *testing.T) {
	f := newFixture(t)
	f.complete(t, "u1", "a1", 10, time.Time{})

	h := command.NewRevokeCompletionHandler(f.ledger, f.store.Actions(), logger.Nop())
	_, err := h.Handle(context.Background(), command.RevokeCompletionCommand{UserID: "u2", ActionID: "a1"})
	require.Error(t, err)
	assert.True(t, shared.IsPreconditionViolation(err))
}

func TestCheckGoal_TwiceGrantsOneAchievementAndOneBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Points earned before the goal existed.
	f.complete(t, "u1", "a1", 150, day(2025, 10, 2))
	g := f.createGoal(t, "u1", 150, day(2025, 10, 1), day(2025, 10, 31))
	before := f.record(t, "u1").TotalPoints

	h := command.NewCheckGoalHandler(f.ledger, f.store.Goals(), logger.Nop())
	first, err := h.Handle(ctx, command.CheckGoalCommand{GoalID: g.ID})
	require.NoError(t, err)
	require.Len(t, first.Unlocked, 1)
	assert.Equal(t, 30, first.BonusPoints)

	second, err := h.Handle(ctx, command.CheckGoalCommand{GoalID: g.ID})
	require.NoError(t, err)
	assert.Empty(t, second.Unlocked)
	assert.Zero(t, second.BonusPoints)

	assert.Equal(t, before+30, f.record(t, "u1").TotalPoints)
	assert.Equal(t, 1, f.achievements(t, "u1"))
}

func TestAward_UnlocksSeveralGoalsInIDOrder(t *testing.T) {
	f := newFixture(t)
	g1 := f.createGoal(t, "u1", 50, day(2025, 10, 1), day(2025, 10, 31))
	g2 := f.createGoal(t, "u1", 80, day(2025, 10, 10), day(2025, 10, 20))
	f.createGoal(t, "u1", 500, day(2025, 10, 1), day(2025, 10, 31))
	f.createGoal(t, "u2", 10, day(2025, 10, 1), day(2025, 10, 31))

	res := f.complete(t, "u1", "a1", 100, time.Time{})

	require.Len(t, res.Award.Unlocked, 2)
	assert.Equal(t, g1.ID, res.Award.Unlocked[0].Goal.ID)
	assert.Equal(t, g2.ID, res.Award.Unlocked[1].Goal.ID)
	assert.Equal(t, 10+16, res.Award.BonusPoints)
	assert.Equal(t, 100+26, f.record(t, "u1").TotalPoints)
	assert.Zero(t, f.achievements(t, "u2"))
}

func TestAward_GoalBonusCanLevelUp(t *testing.T) {
	f := newFixture(t)
	f.createGoal(t, "u1", 240, day(2025, 10, 1), day(2025, 10, 31))

	res := f.complete(t, "u1", "a1", 240, time.Time{})

	require.Len(t, res.Award.Unlocked, 1)
	r := f.record(t, "u1")
	// 240 xp + 48 bonus crosses 250: level 2 grants its own +20.
	assert.Equal(t, shared.Level(2), r.Level)
	assert.Equal(t, 240+48, r.Experience)
	assert.Equal(t, 240+48+20, r.TotalPoints)
}

func TestCreateGoal_Validation(t *testing.T) {
	f := newFixture(t)
	h := command.NewCreateGoalHandler(f.store.Goals(), f.clock, logger.Nop())

	_, err := h.Handle(context.Background(), command.CreateGoalCommand{
		UserID: "u1", Title: "x", TargetPoints: 10,
		StartDate: day(2025, 10, 5), EndDate: day(2025, 10, 1),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidGoalWindow)

	_, err = h.Handle(context.Background(), command.CreateGoalCommand{
		UserID: "u1", Title: "x", TargetPoints: 0,
		StartDate: day(2025, 10, 1), EndDate: day(2025, 10, 5),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidGoalTarget)
}
