package progress

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLevelForXP(t *testing.T) {
	cases := []struct {
		xp    int
		level shared.Level
	}{
		{0, 1},
		{99, 1},
		{100, 1},
		{249, 1},
		{250, 2},
		{449, 2},
		{450, 3},
		{700, 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, shared.LevelForXP(tc.xp), "xp=%d", tc.xp)
	}
}

func TestAward_FreshUserTo250(t *testing.T) {
	r := NewRecord("u1")
	today := day(2025, 10, 7)

	out, err := r.Award(250, today)
	require.NoError(t, err)

	assert.Equal(t, shared.Level(2), r.Level)
	assert.Equal(t, 250+20, r.TotalPoints)
	assert.Equal(t, 250, r.Experience)
	assert.Equal(t, 250, r.DailyPoints)
	assert.Equal(t, 250, r.WeeklyPoints)
	assert.Equal(t, 250, r.MonthlyPoints)
	assert.Equal(t, today, r.LastActivityDate)
	assert.Equal(t, 1, r.StreakDays)
	assert.Equal(t, []LevelUp{{Level: 2, Bonus: 20}}, out.LevelUps)
	assert.NoError(t, r.Validate())
}

func TestAward_MultipleLevelUpsEachGrantBonus(t *testing.T) {
	r := NewRecord("u1")

	out, err := r.Award(700, day(2025, 10, 7))
	require.NoError(t, err)

	// 250 -> L2 (+20), 450 -> L3 (+30), 700 -> L4 (+40)
	assert.Equal(t, shared.Level(4), r.Level)
	assert.Equal(t, 700+20+30+40, r.TotalPoints)
	assert.Equal(t, 700, r.Experience)
	assert.Len(t, out.LevelUps, 3)
}

func TestAward_RejectsNonPositive(t *testing.T) {
	r := NewRecord("u1")

	_, err := r.Award(0, day(2025, 10, 7))
	assert.True(t, shared.IsPreconditionViolation(err))

	_, err = r.Award(-5, day(2025, 10, 7))
	assert.ErrorIs(t, err, shared.ErrInvalidPoints)
	assert.Equal(t, 0, r.TotalPoints)
}

func TestRemove_ClampsEachCounterIndependently(t *testing.T) {
	r := NewRecord("u1")
	_, err := r.Award(50, day(2025, 10, 6))
	require.NoError(t, err)
	require.NoError(t, r.ResetPeriod(shared.PeriodDaily))
	_, err = r.Award(10, day(2025, 10, 7))
	require.NoError(t, err)

	// total=60, daily=10
	_, err = r.Remove(30)
	require.NoError(t, err)

	assert.Equal(t, 30, r.TotalPoints)
	assert.Equal(t, 0, r.DailyPoints)
	assert.Equal(t, 30, r.WeeklyPoints)
	assert.Equal(t, 30, r.Experience)
}

func TestRemove_MoreThanAccumulatedLeavesZero(t *testing.T) {
	r := NewRecord("u1")
	_, err := r.Award(300, day(2025, 10, 7))
	require.NoError(t, err)

	out, err := r.Remove(10_000)
	require.NoError(t, err)

	assert.Equal(t, 0, r.TotalPoints)
	assert.Equal(t, 0, r.DailyPoints)
	assert.Equal(t, 0, r.WeeklyPoints)
	assert.Equal(t, 0, r.MonthlyPoints)
	assert.Equal(t, 0, r.Experience)
	assert.Equal(t, shared.Level(2), out.OldLevel)
	assert.Equal(t, shared.Level(1), out.NewLevel)
	assert.NoError(t, r.Validate())
}

func TestRemove_KeepsStreakAndActivity(t *testing.T) {
	r := NewRecord("u1")
	today := day(2025, 10, 7)
	_, err := r.Award(10, today)
	require.NoError(t, err)

	_, err = r.Remove(10)
	require.NoError(t, err)

	assert.Equal(t, today, r.LastActivityDate)
	assert.Equal(t, 1, r.StreakDays)
}

func TestRecord_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := NewRecord("u1")
	today := day(2025, 1, 1)

	for i := 0; i < 2000; i++ {
		pts := shared.Points(rng.Intn(300) + 1)
		if rng.Intn(3) == 0 {
			_, err := r.Remove(pts)
			require.NoError(t, err)
		} else {
			_, err := r.Award(pts, today)
			require.NoError(t, err)
		}
		if rng.Intn(10) == 0 {
			today = today.AddDate(0, 0, rng.Intn(3))
		}
		require.NoError(t, r.Validate(), "step %d", i)
	}
}

func TestXPDerivedValues(t *testing.T) {
	r := NewRecord("u1")
	assert.Equal(t, 250, r.XPToNextLevel())
	assert.Equal(t, 0, r.XPProgressPercent())

	_, err := r.Award(350, day(2025, 10, 7))
	require.NoError(t, err)

	// level 2: 250..450
	assert.Equal(t, 100, r.XPToNextLevel())
	assert.Equal(t, 50, r.XPProgressPercent())
}

func TestResetPeriod(t *testing.T) {
	r := NewRecord("u1")
	_, err := r.Award(40, day(2025, 10, 7))
	require.NoError(t, err)

	require.NoError(t, r.ResetPeriod(shared.PeriodWeekly))
	assert.Equal(t, 0, r.WeeklyPoints)
	assert.Equal(t, 40, r.DailyPoints)
	assert.Equal(t, 40, r.MonthlyPoints)

	assert.ErrorIs(t, r.ResetPeriod("yearly"), shared.ErrInvalidPeriod)
}
