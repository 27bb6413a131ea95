package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

func TestReconcileStreak_AllStaleUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Award(ctx, "active", 5, day(2025, 10, 14))
	require.NoError(t, err)
	_, err = f.ledger.Award(ctx, "stale", 5, day(2025, 10, 10))
	require.NoError(t, err)
	_, err = f.ledger.Award(ctx, "stale2", 5, day(2025, 10, 1))
	require.NoError(t, err)

	h := command.NewReconcileStreakHandler(f.ledger, f.store.Progress(), logger.Nop(), command.ReconcileStreakConfig{BatchSize: 1})
	res, err := h.Handle(ctx, command.ReconcileStreakCommand{Today: day(2025, 10, 15)})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 2, res.Reset)
	assert.Equal(t, 1, f.record(t, "active").StreakDays)
	assert.Zero(t, f.record(t, "stale").StreakDays)
	assert.Zero(t, f.record(t, "stale2").StreakDays)
	assert.Equal(t, 2, f.events.count(shared.EventStreakReset))

	// Last activity and points are untouched.
	assert.Equal(t, day(2025, 10, 10), f.record(t, "stale").LastActivityDate)
	assert.Equal(t, 5, f.record(t, "stale").TotalPoints)
}

func TestReconcileStreak_SingleUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Award(ctx, "u1", 5, day(2025, 10, 14))
	require.NoError(t, err)

	h := command.NewReconcileStreakHandler(f.ledger, f.store.Progress(), logger.Nop(), command.DefaultReconcileStreakConfig())

	res, err := h.Handle(ctx, command.ReconcileStreakCommand{UserID: "u1", Today: day(2025, 10, 15)})
	require.NoError(t, err)
	assert.Zero(t, res.Reset, "yesterday keeps the streak")

	res, err = h.Handle(ctx, command.ReconcileStreakCommand{UserID: "u1", Today: day(2025, 10, 16)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reset)
	assert.Zero(t, f.record(t, "u1").StreakDays)

	res, err = h.Handle(ctx, command.ReconcileStreakCommand{UserID: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, res.Reset)
}

func TestResetPeriodPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Award(ctx, "u1", 40, time.Time{})
	require.NoError(t, err)
	_, err = f.ledger.Award(ctx, "u2", 10, time.Time{})
	require.NoError(t, err)

	h := command.NewResetPeriodPointsHandler(f.store.Progress(), f.events, logger.Nop())

	res, err := h.Handle(ctx, command.ResetPeriodPointsCommand{Period: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Affected)
	assert.Equal(t, 2, res.Users)

	r := f.record(t, "u1")
	assert.Zero(t, r.WeeklyPoints)
	assert.Equal(t, 40, r.DailyPoints)
	assert.Equal(t, 40, r.MonthlyPoints)
	assert.Equal(t, 40, r.TotalPoints)
	assert.Equal(t, int64(2), r.Version)

	res, err = h.Handle(ctx, command.ResetPeriodPointsCommand{Period: "weekly"})
	require.NoError(t, err)
	assert.Zero(t, res.Affected)

	_, err = h.Handle(ctx, command.ResetPeriodPointsCommand{Period: "hourly"})
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)

	// A later award still applies on top of the reset record.
	_, err = f.ledger.Award(ctx, "u1", 5, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 5, f.record(t, "u1").WeeklyPoints)
}

func TestHabitCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := command.NewHabitHandler(f.store.Habits(), f.store, command.NewLocalLocker(), f.events, f.clock, logger.Nop())

	hb, err := h.Create(ctx, command.CreateHabitCommand{UserID: "u1", Name: "Read", TargetCount: 2})
	require.NoError(t, err)
	require.NotZero(t, hb.ID)

	notes := "chapter 1"
	res, err := h.Complete(ctx, command.CompleteHabitCommand{HabitID: hb.ID, UserID: "u1", Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Entry.Count)
	assert.Equal(t, day(2025, 10, 15), res.Entry.Date)

	res, err = h.Complete(ctx, command.CompleteHabitCommand{HabitID: hb.ID, UserID: "u1", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Entry.Count)
	assert.Equal(t, "chapter 1", res.Entry.Notes)

	res, err = h.Uncomplete(ctx, command.UncompleteHabitCommand{HabitID: hb.ID, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Entry.Count)

	_, err = h.Uncomplete(ctx, command.UncompleteHabitCommand{HabitID: hb.ID, UserID: "u1"})
	require.NoError(t, err)
	res, err = h.Uncomplete(ctx, command.UncompleteHabitCommand{HabitID: hb.ID, UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	_, err = h.Uncomplete(ctx, command.UncompleteHabitCommand{HabitID: hb.ID, UserID: "u1"})
	assert.ErrorIs(t, err, shared.ErrHabitEntryNotFound)

	_, err = h.Complete(ctx, command.CompleteHabitCommand{HabitID: hb.ID, UserID: "u2"})
	assert.ErrorIs(t, err, shared.ErrHabitForeignUser)

	_, err = f.store.Progress().Get(ctx, "u1")
	assert.True(t, shared.IsNotFound(err), "habit entries do not award points")
	assert.Equal(t, 5, f.events.count(shared.EventHabitEntryChanged))
}
