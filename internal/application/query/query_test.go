package query_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var clock = timeutil.FixedClock{At: time.Date(2025, 10, 8, 9, 0, 0, 0, time.UTC)}

type mapCache struct {
	mu   sync.Mutex
	data map[string]*query.ProgressSnapshotDTO
	gets int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]*query.ProgressSnapshotDTO)}
}

func (c *mapCache) Get(_ context.Context, userID string) (*query.ProgressSnapshotDTO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.data[userID], nil
}

func (c *mapCache) Set(_ context.Context, s *query.ProgressSnapshotDTO) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[s.UserID] = s
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, userID)
	return nil
}

func (c *mapCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*query.ProgressSnapshotDTO)
	return nil
}

func TestSnapshot_MissingRecordIsZeroed(t *testing.T) {
	store := memory.New()
	h := query.NewGetProgressSnapshotHandler(store.Progress(), nil, nil)

	s, err := h.Handle(context.Background(), query.GetProgressSnapshotQuery{UserID: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Level)
	assert.Zero(t, s.TotalPoints)
	assert.Zero(t, s.Experience)
	assert.Equal(t, 250, s.XPToNextLevel)
	assert.Zero(t, s.XPProgressPercent)
	assert.Empty(t, s.LastActivityDate)
}

func TestSnapshot_UsesCache(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	rec := progress.NewRecord("u1")
	_, err := rec.Award(shared.Points(300), day(2025, 10, 8))
	require.NoError(t, err)
	require.NoError(t, store.Progress().Save(ctx, rec))

	cache := newMapCache()
	h := query.NewGetProgressSnapshotHandler(store.Progress(), cache, nil)

	s, err := h.Handle(ctx, query.GetProgressSnapshotQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Level)
	assert.Equal(t, 320, s.TotalPoints)
	assert.Equal(t, 150, s.XPToNextLevel)
	assert.Equal(t, 25, s.XPProgressPercent)
	assert.Equal(t, "2025-10-08", s.LastActivityDate)

	cached, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, s, cached)

	s2, err := h.Handle(ctx, query.GetProgressSnapshotQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Same(t, cached, s2)
}

func TestListGoals_CapsProgress(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	g, err := goal.NewGoal(goal.NewGoalParams{
		UserID: "u1", Title: "Sprint", TargetPoints: 100,
		StartDate: day(2025, 10, 1), EndDate: day(2025, 10, 31),
		RewardName: "Finisher",
	}, clock.Now())
	require.NoError(t, err)
	require.NoError(t, store.Goals().Create(ctx, g))

	for i, pts := range []int{70, 50} {
		a := &activity.Action{ID: string(rune('a' + i)), UserID: "u1", Kind: activity.KindTask, Points: pts}
		a.MarkCompleted(day(2025, 10, 5))
		require.NoError(t, store.Actions().Save(ctx, a))
	}

	h := query.NewListGoalsHandler(store.Goals(), store.Actions(), clock)
	goals, err := h.Handle(ctx, query.ListGoalsQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, goals, 1)

	assert.Equal(t, 100, goals[0].CurrentProgress)
	assert.Equal(t, 100, goals[0].ProgressPercentage)
	assert.Equal(t, 23, goals[0].DaysRemaining)
	assert.Equal(t, "badge", goals[0].Reward.Type)
	assert.Equal(t, "Finisher", goals[0].Reward.Name)
	assert.Equal(t, goal.DefaultRewardColor, goals[0].Reward.Color)
}

func TestHabitStats(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	hb, err := habit.NewHabit(habit.NewHabitParams{UserID: "u1", Name: "Run"}, clock.Now())
	require.NoError(t, err)
	require.NoError(t, store.Habits().Create(ctx, hb))

	// Monday and Wednesday of the week of 2025-10-06.
	for _, d := range []time.Time{day(2025, 10, 6), day(2025, 10, 8), day(2025, 9, 30)} {
		require.NoError(t, store.Habits().SaveEntry(ctx, &habit.Entry{HabitID: hb.ID, UserID: "u1", Date: d, Count: 1}))
	}

	h := query.NewHabitStatsHandler(store.Habits(), clock)

	s, err := h.Stats(ctx, query.GetHabitStatsQuery{HabitID: hb.ID})
	require.NoError(t, err)
	assert.Equal(t, 67, s.WeeklyCompletionPercent)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.True(t, s.CompletedToday)

	st, err := h.Statistics(ctx, query.GetHabitStatisticsQuery{HabitID: hb.ID, Period: "week"})
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalCompletions)
	assert.Equal(t, 2, st.CompletionDays)
	require.Len(t, st.Entries, 2)
	assert.Equal(t, "2025-10-06", st.Entries[0].Date)

	st, err = h.Statistics(ctx, query.GetHabitStatisticsQuery{HabitID: hb.ID})
	require.NoError(t, err)
	assert.Equal(t, "month", st.Period)
	assert.Equal(t, 2, st.CompletionDays)

	_, err = h.Statistics(ctx, query.GetHabitStatisticsQuery{HabitID: hb.ID, Period: "decade"})
	assert.ErrorIs(t, err, shared.ErrInvalidStatsPeriod)

	_, err = h.Stats(ctx, query.GetHabitStatsQuery{HabitID: 999})
	assert.ErrorIs(t, err, shared.ErrHabitNotFound)
}

func TestUserStats(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	done := &activity.Action{ID: "t1", UserID: "u1", Kind: activity.KindTask, Points: 10}
	done.MarkCompleted(day(2025, 10, 8))
	require.NoError(t, store.Actions().Save(ctx, done))
	require.NoError(t, store.Actions().Save(ctx, &activity.Action{ID: "t2", UserID: "u1", Kind: activity.KindTask, Points: 10}))
	require.NoError(t, store.Actions().Save(ctx, &activity.Action{ID: "h1", UserID: "u1", Kind: activity.KindHabit, Points: 10}))

	h := query.NewGetUserStatsHandler(store.Progress(), store.Actions(), store.Goals(), store.Achievements(), clock)
	s, err := h.Handle(ctx, query.GetUserStatsQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 2, s.TotalTasks)
	assert.Equal(t, 1, s.CompletedTasks)
	assert.Equal(t, 1, s.PendingTasks)
	assert.Equal(t, 1, s.Level)
	assert.Zero(t, s.TotalAchievements)
	assert.Zero(t, s.StreakDaysLeft)
}
