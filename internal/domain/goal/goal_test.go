package goal

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

func newTestGoal(t *testing.T, target int) *Goal {
	t.Helper()
	g, err := NewGoal(NewGoalParams{
		UserID:       "u1",
		Title:        "October sprint",
		TargetPoints: target,
		StartDate:    day(2025, 10, 1),
		EndDate:      day(2025, 10, 31),
	}, day(2025, 10, 1))
	require.NoError(t, err)
	g.ID = 1
	return g
}

func TestNewGoal_Defaults(t *testing.T) {
	g := newTestGoal(t, 100)

	assert.Equal(t, RewardBadge, g.Reward.Type)
	assert.Equal(t, DefaultRewardColor, g.Reward.Color)
	assert.False(t, g.Achieved)
	assert.Nil(t, g.AchievedAt)
}

func TestNewGoal_Validation(t *testing.T) {
	base := NewGoalParams{
		UserID:       "u1",
		Title:        "t",
		TargetPoints: 10,
		StartDate:    day(2025, 10, 1),
		EndDate:      day(2025, 10, 2),
	}

	p := base
	p.TargetPoints = 0
	_, err := NewGoal(p, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidGoalTarget)

	p = base
	p.StartDate, p.EndDate = p.EndDate, p.StartDate
	_, err = NewGoal(p, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidGoalWindow)

	p = base
	p.Title = "  "
	_, err = NewGoal(p, time.Now())
	assert.True(t, shared.IsValidation(err))

	p = base
	p.RewardType = "trophy"
	_, err = NewGoal(p, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidRewardType)
}

func TestEvaluate_CapsAtTarget(t *testing.T) {
	g := newTestGoal(t, 100)

	p := g.Evaluate(120)
	assert.Equal(t, 100, p.Current)
	assert.Equal(t, 100, p.Percentage)
	assert.True(t, p.Achievable)
}

func TestEvaluate_Partial(t *testing.T) {
	g := newTestGoal(t, 300)

	p := g.Evaluate(100)
	assert.Equal(t, 100, p.Current)
	assert.Equal(t, 33, p.Percentage)
	assert.False(t, p.Achievable)

	p = g.Evaluate(200)
	assert.Equal(t, 67, p.Percentage)
}

func TestGoal_ActiveExpiredDaysRemaining(t *testing.T) {
	g := newTestGoal(t, 100)

	assert.True(t, g.IsActive(day(2025, 10, 1)))
	assert.True(t, g.IsActive(day(2025, 10, 31)))
	assert.False(t, g.IsActive(day(2025, 11, 1)))
	assert.False(t, g.IsActive(day(2025, 9, 30)))

	assert.Equal(t, 30, g.DaysRemaining(day(2025, 10, 1)))
	assert.Equal(t, 0, g.DaysRemaining(day(2025, 10, 31)))
	assert.Equal(t, -2, g.DaysRemaining(day(2025, 11, 2)))
	assert.True(t, g.IsExpired(day(2025, 11, 1)))
	assert.False(t, g.IsExpired(day(2025, 10, 31)))
}

func TestGoal_MarkAchievedOnce(t *testing.T) {
	g := newTestGoal(t, 100)
	at := time.Date(2025, 10, 5, 12, 0, 0, 0, time.UTC)

	require.NoError(t, g.MarkAchieved(at))
	assert.True(t, g.Achieved)
	require.NotNil(t, g.AchievedAt)
	assert.Equal(t, at, *g.AchievedAt)
	assert.False(t, g.IsActive(day(2025, 10, 6)))

	assert.ErrorIs(t, g.MarkAchieved(at.Add(time.Hour)), shared.ErrGoalAlreadyAchieved)
	assert.Equal(t, at, *g.AchievedAt)
}

func TestBonusPoints(t *testing.T) {
	assert.Equal(t, 20, newTestGoal(t, 100).BonusPoints())
	assert.Equal(t, 3, newTestGoal(t, 15).BonusPoints()) // 3.0
	assert.Equal(t, 3, newTestGoal(t, 13).BonusPoints()) // 2.6
	assert.Equal(t, 5, newTestGoal(t, 25).BonusPoints()) // 5.0
	assert.Equal(t, 1, newTestGoal(t, 3).BonusPoints())  // 0.6
	assert.Equal(t, 0, newTestGoal(t, 2).BonusPoints())  // 0.4
}

func TestNewAchievementForGoal(t *testing.T) {
	g := newTestGoal(t, 150)
	g.Reward.Icon = "star"
	at := time.Date(2025, 10, 5, 12, 0, 0, 0, time.UTC)

	a := NewAchievementForGoal(g, at)
	require.NotNil(t, a.GoalID)
	assert.Equal(t, int64(1), *a.GoalID)
	assert.Equal(t, 150, a.PointsEarned)
	assert.Equal(t, "star", a.BadgeIcon)
	assert.Equal(t, DefaultRewardColor, a.BadgeColor)
	assert.Equal(t, "October sprint", a.Title)
}
