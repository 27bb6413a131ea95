package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDotEnv(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("PROGRESS_TIMEZONE", "")

	cfg, err := Load(noDotEnv(t))
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "UTC", cfg.Engine.Timezone)
	assert.Equal(t, time.UTC, cfg.Engine.Location)
	assert.Equal(t, 5, cfg.Engine.MaxRetries)
	assert.Equal(t, LockLocal, cfg.Engine.LockBackend)
	assert.Equal(t, "0 0 * * 1", cfg.Scheduler.WeeklyResetCron)
	assert.True(t, cfg.Features.IsEnabled(FeatureSnapshotCache))
}

func TestLoad_PostgresFromURL(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/progress")
	t.Setenv("PROGRESS_TIMEZONE", "Asia/Almaty")

	cfg, err := Load(noDotEnv(t))
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "Asia/Almaty", cfg.Engine.Location.String())
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PROGRESS_MAX_RETRIES=7\n"), 0o600))
	t.Setenv("PROGRESS_MAX_RETRIES", "")
	require.NoError(t, os.Unsetenv("PROGRESS_MAX_RETRIES"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.MaxRetries)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}, "DATABASE_DRIVER"},
		{"postgres without url", map[string]string{"DATABASE_DRIVER": "postgres", "DATABASE_URL": "", "DB_HOST": ""}, "DATABASE_URL"},
		{"redis lock without redis", map[string]string{"PROGRESS_LOCK_BACKEND": "redis", "REDIS_ENABLED": "false"}, "REDIS_ENABLED"},
		{"zero retries", map[string]string{"PROGRESS_MAX_RETRIES": "0"}, "PROGRESS_MAX_RETRIES"},
		{"memory in production", map[string]string{"DATABASE_DRIVER": "memory", "APP_ENV": "production"}, "memory driver"},
		{"bad timezone", map[string]string{"PROGRESS_TIMEZONE": "Mars/Olympus"}, "PROGRESS_TIMEZONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(noDotEnv(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFeatureFlags_EnvAndRollout(t *testing.T) {
	t.Setenv("FEATURE_EVENTS_FORWARD", "false")
	t.Setenv("FEATURE_CACHE_SNAPSHOTS", "50")
	t.Setenv("FEATURE_JOBS_STREAK_RECONCILE", "0")
	t.Setenv("FEATURE_JOBS_PERIOD_RESETS", "150")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureEventForwarding))
	assert.False(t, ff.IsEnabled(FeatureSnapshotCache))
	assert.True(t, ff.IsEnabled(FeaturePeriodResets))
	assert.False(t, ff.IsEnabled("unknown.flag"))

	in, out := 0, 0
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		first := ff.IsEnabledFor(FeatureSnapshotCache, id)
		assert.Equal(t, first, ff.IsEnabledFor(FeatureSnapshotCache, id), "bucket must be stable")
		if first {
			in++
		} else {
			out++
		}
	}
	assert.Equal(t, 12, in+out)

	assert.False(t, ff.IsEnabledFor(FeatureStreakReconcile, "a"))

	list := ff.List()
	require.Len(t, list, 5)
	assert.Equal(t, FeatureSnapshotCache, list[0].Name)
	assert.Equal(t, 50, list[0].RolloutPercent)
}
