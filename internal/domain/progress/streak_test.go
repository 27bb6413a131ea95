package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStreak(t *testing.T) {
	d := day(2025, 10, 10)

	assert.Equal(t, 1, NextStreak(0, time.Time{}, d), "first activity")
	assert.Equal(t, 5, NextStreak(4, d.AddDate(0, 0, -1), d), "yesterday")
	assert.Equal(t, 4, NextStreak(4, d, d), "same day")
	assert.Equal(t, 1, NextStreak(4, d.AddDate(0, 0, -3), d), "gap")
	assert.Equal(t, 4, NextStreak(4, d.AddDate(0, 0, 2), d), "late event")
}

func TestAward_StreakScenarios(t *testing.T) {
	d := day(2025, 10, 10)

	t.Run("after yesterday increments", func(t *testing.T) {
		r := NewRecord("u1")
		r.StreakDays = 3
		r.LastActivityDate = d.AddDate(0, 0, -1)

		out, err := r.Award(10, d)
		require.NoError(t, err)
		assert.Equal(t, 4, r.StreakDays)
		assert.True(t, out.StreakChanged())
	})

	t.Run("after gap resets to one", func(t *testing.T) {
		r := NewRecord("u1")
		r.StreakDays = 3
		r.LastActivityDate = d.AddDate(0, 0, -3)

		_, err := r.Award(10, d)
		require.NoError(t, err)
		assert.Equal(t, 1, r.StreakDays)
	})

	t.Run("second award same day is idempotent", func(t *testing.T) {
		r := NewRecord("u1")
		r.StreakDays = 3
		r.LastActivityDate = d.AddDate(0, 0, -1)

		_, err := r.Award(10, d)
		require.NoError(t, err)
		out, err := r.Award(10, d)
		require.NoError(t, err)
		assert.Equal(t, 4, r.StreakDays)
		assert.False(t, out.StreakChanged())
	})
}

func TestAward_BackdatedKeepsStreakAndLastActivity(t *testing.T) {
	r := NewRecord("u1")
	_, err := r.Award(10, day(2025, 10, 14))
	require.NoError(t, err)
	_, err = r.Award(10, day(2025, 10, 15))
	require.NoError(t, err)
	require.Equal(t, 2, r.StreakDays)

	out, err := r.Award(10, day(2025, 10, 13))
	require.NoError(t, err)

	assert.Equal(t, 2, r.StreakDays)
	assert.False(t, out.StreakChanged())
	assert.Equal(t, day(2025, 10, 15), r.LastActivityDate)
	assert.Equal(t, 30, r.TotalPoints)
	assert.NoError(t, r.Validate())
}

func TestReconcileStreak(t *testing.T) {
	d := day(2025, 10, 10)

	n, reset := ReconcileStreak(5, d, d)
	assert.Equal(t, 5, n)
	assert.False(t, reset)

	n, reset = ReconcileStreak(5, d.AddDate(0, 0, -1), d)
	assert.Equal(t, 5, n)
	assert.False(t, reset)

	n, reset = ReconcileStreak(5, d.AddDate(0, 0, -2), d)
	assert.Equal(t, 0, n)
	assert.True(t, reset)

	n, reset = ReconcileStreak(0, d.AddDate(0, 0, -9), d)
	assert.Equal(t, 0, n)
	assert.False(t, reset)

	// last activity after today: the job ran with a stale date
	n, reset = ReconcileStreak(5, d.AddDate(0, 0, 1), d)
	assert.Equal(t, 5, n)
	assert.False(t, reset)
}

func TestDaysUntilStreakBreaks(t *testing.T) {
	d := day(2025, 10, 10)

	assert.Equal(t, 2, DaysUntilStreakBreaks(3, d, d))
	assert.Equal(t, 1, DaysUntilStreakBreaks(3, d.AddDate(0, 0, -1), d))
	assert.Equal(t, 0, DaysUntilStreakBreaks(3, d.AddDate(0, 0, -2), d))
	assert.Equal(t, 0, DaysUntilStreakBreaks(0, d, d))
}
