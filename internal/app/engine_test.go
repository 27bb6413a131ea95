package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/config"
	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

func testConfig(driver, sqlitePath string) *config.Config {
	return &config.Config{
		App:      config.AppConfig{Environment: config.EnvDevelopment},
		Database: config.DatabaseConfig{Driver: driver, SQLitePath: sqlitePath, AutoMigrate: true},
		Engine: config.EngineConfig{
			Timezone:          "UTC",
			Location:          time.UTC,
			LockBackend:       config.LockLocal,
			LockTTL:           30 * time.Second,
			MaxRetries:        5,
			DefaultTaskPoints: 10,
		},
		Features: config.LoadFeatureFlags(),
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	drivers := map[string]*config.Config{
		"memory": testConfig(config.DriverMemory, ""),
		"sqlite": testConfig(config.DriverSQLite, filepath.Join(t.TempDir(), "progress.db")),
	}

	for name, cfg := range drivers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := timeutil.FixedClock{At: time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)}

			e, err := New(ctx, cfg, logger.Nop(), Options{Clock: clock})
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, e.Close()) })

			g, err := e.CreateGoal.Handle(ctx, command.CreateGoalCommand{
				UserID:       "u1",
				Title:        "October sprint",
				TargetPoints: 100,
				StartDate:    timeutil.Date(2025, 10, 1),
				EndDate:      timeutil.Date(2025, 10, 31),
			})
			require.NoError(t, err)

			res, err := e.RecordCompletion.Handle(ctx, command.RecordCompletionCommand{
				UserID: "u1", ActionID: "t1", Points: 120,
			})
			require.NoError(t, err)
			require.NotNil(t, res.Award)
			assert.False(t, res.Duplicate)
			require.Len(t, res.Award.Unlocked, 1)
			assert.Equal(t, g.ID, res.Award.Unlocked[0].Goal.ID)

			dup, err := e.RecordCompletion.Handle(ctx, command.RecordCompletionCommand{
				UserID: "u1", ActionID: "t1", Points: 120,
			})
			require.NoError(t, err)
			assert.True(t, dup.Duplicate)

			snap, err := e.Snapshot.Handle(ctx, query.GetProgressSnapshotQuery{UserID: "u1"})
			require.NoError(t, err)
			// 120 + goal bonus 20
			assert.Equal(t, 140, snap.Experience)
			assert.Equal(t, 140, snap.TotalPoints)
			assert.Equal(t, 1, snap.StreakDays)

			stats, err := e.UserStats.Handle(ctx, query.GetUserStatsQuery{UserID: "u1"})
			require.NoError(t, err)
			assert.Equal(t, 1, stats.TotalAchievements)

			assert.Equal(t, int64(1), e.Milestones.Stats().GoalsAchieved)
		})
	}
}

func TestEngine_RejectsRedisLockWithoutRedis(t *testing.T) {
	cfg := testConfig(config.DriverMemory, "")
	cfg.Engine.LockBackend = config.LockRedis

	_, err := New(context.Background(), cfg, logger.Nop(), Options{})
	assert.ErrorContains(t, err, "requires redis")
}
