package habit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func entries(count int, dates ...time.Time) []*Entry {
	out := make([]*Entry, 0, len(dates))
	for _, d := range dates {
		out = append(out, &Entry{HabitID: 1, UserID: "u1", Date: d, Count: count})
	}
	return out
}

func TestWeeklyCompletion_MondayAndWednesday(t *testing.T) {
	h := &Habit{ID: 1, TargetCount: 1}
	// 2025-10-06 is a Monday.
	c := NewCalculator(h, entries(1, day(2025, 10, 6), day(2025, 10, 8)))

	assert.Equal(t, 67, c.WeeklyCompletionPercentage(day(2025, 10, 8)))
}

func TestWeeklyCompletion_FutureDaysExcluded(t *testing.T) {
	h := &Habit{ID: 1, TargetCount: 1}
	c := NewCalculator(h, entries(1, day(2025, 10, 6)))

	// Evaluated on Monday: 1 elapsed day, completed.
	assert.Equal(t, 100, c.WeeklyCompletionPercentage(day(2025, 10, 6)))
}

func TestIsCompletedForDate_RespectsTarget(t *testing.T) {
	h := &Habit{ID: 1, TargetCount: 3}
	c := NewCalculator(h, []*Entry{
		{Date: day(2025, 10, 6), Count: 2},
		{Date: day(2025, 10, 7), Count: 3},
	})

	assert.False(t, c.IsCompletedForDate(day(2025, 10, 6)))
	assert.True(t, c.IsCompletedForDate(day(2025, 10, 7)))
	assert.False(t, c.IsCompletedForDate(day(2025, 10, 8)))
}

func TestCurrentStreak(t *testing.T) {
	h := &Habit{ID: 1, TargetCount: 1}
	c := NewCalculator(h, entries(1,
		day(2025, 10, 1),
		day(2025, 10, 3), day(2025, 10, 4), day(2025, 10, 5),
	))

	assert.Equal(t, 3, c.CurrentStreak(day(2025, 10, 5)))
	assert.Equal(t, 0, c.CurrentStreak(day(2025, 10, 6)), "today not done")
	assert.Equal(t, 1, c.CurrentStreak(day(2025, 10, 1)))
}

func TestMonthlyCompletion(t *testing.T) {
	h := &Habit{ID: 1, TargetCount: 1}
	c := NewCalculator(h, entries(1, day(2025, 10, 1), day(2025, 10, 2), day(2025, 9, 30)))

	// 4 elapsed days in October, 2 completed.
	assert.Equal(t, 50, c.MonthlyCompletionPercentage(day(2025, 10, 4)))
	// September entries do not count for October.
	assert.Equal(t, 100, c.MonthlyCompletionPercentage(day(2025, 10, 1)))
}

func TestStats(t *testing.T) {
	h := &Habit{ID: 1, TargetCount: 1}
	c := NewCalculator(h, entries(1, day(2025, 10, 7), day(2025, 10, 8)))

	s := c.Stats(day(2025, 10, 8))
	assert.Equal(t, 2, s.CurrentStreak)
	assert.True(t, s.CompletedToday)
	assert.Equal(t, 67, s.WeeklyCompletionPercent)  // Mon..Wed, 2 of 3
	assert.Equal(t, 25, s.MonthlyCompletionPercent) // 2 of 8
}

func TestSummarize(t *testing.T) {
	h := &Habit{ID: 1, TargetCount: 2}
	all := []*Entry{
		{Date: day(2025, 9, 29), Count: 2},
		{Date: day(2025, 10, 6), Count: 2},
		{Date: day(2025, 10, 7), Count: 5},
	}
	c := NewCalculator(h, all)

	start := PeriodStart(shared.StatsWeek, day(2025, 10, 7))
	require.Equal(t, day(2025, 10, 6), start)

	s := c.Summarize(all[1:], day(2025, 10, 7))
	assert.Equal(t, 7, s.TotalCompletions)
	assert.Equal(t, 2, s.CompletionDays)
	assert.Equal(t, 2, s.CurrentStreak)
	assert.Len(t, s.Entries, 2)
}

func TestPeriodStart(t *testing.T) {
	today := day(2025, 10, 8)
	assert.Equal(t, day(2025, 10, 6), PeriodStart(shared.StatsWeek, today))
	assert.Equal(t, day(2025, 10, 1), PeriodStart(shared.StatsMonth, today))
	assert.Equal(t, day(2025, 1, 1), PeriodStart(shared.StatsYear, today))
}

func TestEntry_IncrementDecrement(t *testing.T) {
	e := &Entry{Count: 1, Notes: "first"}

	require.NoError(t, e.Increment(2, nil))
	assert.Equal(t, 3, e.Count)
	assert.Equal(t, "first", e.Notes)

	notes := "updated"
	require.NoError(t, e.Increment(1, &notes))
	assert.Equal(t, "updated", e.Notes)

	assert.ErrorIs(t, e.Increment(0, nil), shared.ErrInvalidHabitCount)

	assert.False(t, e.Decrement())
	assert.Equal(t, 3, e.Count)
	e.Count = 1
	assert.True(t, e.Decrement())
}

func TestNewHabit(t *testing.T) {
	h, err := NewHabit(NewHabitParams{UserID: "u1", Name: "Read"}, day(2025, 10, 1))
	require.NoError(t, err)
	assert.Equal(t, FrequencyDaily, h.Frequency)
	assert.Equal(t, 1, h.TargetCount)
	assert.True(t, h.IsActive)

	_, err = NewHabit(NewHabitParams{UserID: "u1", Name: "Read", TargetCount: -1}, day(2025, 10, 1))
	assert.ErrorIs(t, err, shared.ErrInvalidHabitTarget)

	_, err = NewHabit(NewHabitParams{UserID: "u1", Name: "Read", Frequency: "hourly"}, day(2025, 10, 1))
	assert.ErrorIs(t, err, shared.ErrInvalidFrequency)
}
