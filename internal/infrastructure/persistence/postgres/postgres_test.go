package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/postgres"
)

// These tests need a disposable database: DATABASE_URL=postgres://... go test
func connect(t *testing.T) *postgres.Connection {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	cfg := postgres.DefaultConfig()
	cfg.URL = url
	ctx := context.Background()
	conn, err := postgres.NewConnection(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = postgres.NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	return conn
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func uniqueUser() string {
	return "pg-test-" + uuid.NewString()
}

func TestMigrator_RollbackAndReapply(t *testing.T) {
	conn := connect(t)
	ctx := context.Background()
	m := postgres.NewMigrator(conn)

	require.NoError(t, m.Rollback(ctx))
	applied, err := m.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, len(postgres.GetMigrations())-1)

	n, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProgressRepository_VersionedSave(t *testing.T) {
	conn := connect(t)
	ctx := context.Background()
	repo := postgres.NewProgressRepository(conn)
	user := uniqueUser()

	rec := progress.NewRecord(user)
	_, err := rec.Award(shared.Points(30), day(2025, 10, 15))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	assert.ErrorIs(t, repo.Save(ctx, progress.NewRecord(user)), shared.ErrVersionConflict)

	loaded, err := repo.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 30, loaded.TotalPoints)
	assert.True(t, day(2025, 10, 15).Equal(loaded.LastActivityDate))

	loaded.TotalPoints = 31
	require.NoError(t, repo.Save(ctx, loaded))

	rec.TotalPoints = 99
	assert.ErrorIs(t, repo.Save(ctx, rec), shared.ErrVersionConflict)

	_, err = repo.Get(ctx, uniqueUser())
	assert.True(t, shared.IsNotFound(err))
}

func TestConnection_WithinTxRollsBack(t *testing.T) {
	conn := connect(t)
	ctx := context.Background()
	repo := postgres.NewProgressRepository(conn)
	user := uniqueUser()

	boom := errors.New("boom")
	err := conn.WithinTx(ctx, func(ctx context.Context) error {
		rec := progress.NewRecord(user)
		if _, err := rec.Award(shared.Points(5), day(2025, 10, 15)); err != nil {
			return err
		}
		if err := repo.Save(ctx, rec); err != nil {
			return err
		}
		locked, err := repo.GetForUpdate(ctx, user)
		if err != nil {
			return err
		}
		assert.Equal(t, 5, locked.TotalPoints)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.Get(ctx, user)
	assert.True(t, shared.IsNotFound(err))
}

func TestGoalsAndActions(t *testing.T) {
	conn := connect(t)
	ctx := context.Background()
	goals := postgres.NewGoalRepository(conn)
	achievements := postgres.NewAchievementRepository(conn)
	actions := postgres.NewActionRepository(conn)
	user := uniqueUser()
	today := day(2025, 10, 15)

	g, err := goal.NewGoal(goal.NewGoalParams{
		UserID:       user,
		Title:        "Sprint",
		TargetPoints: 50,
		StartDate:    day(2025, 10, 1),
		EndDate:      day(2025, 10, 31),
	}, today)
	require.NoError(t, err)
	require.NoError(t, goals.Create(ctx, g))
	require.NotZero(t, g.ID)

	active, err := goals.ListActive(ctx, user, today)
	require.NoError(t, err)
	require.Len(t, active, 1)

	done := &activity.Action{ID: uuid.NewString(), UserID: user, Kind: activity.KindTask, Points: 30}
	done.MarkCompleted(day(2025, 10, 10))
	require.NoError(t, actions.Save(ctx, done))
	outside := &activity.Action{ID: uuid.NewString(), UserID: user, Kind: activity.KindTask, Points: 30}
	outside.MarkCompleted(day(2025, 9, 30))
	require.NoError(t, actions.Save(ctx, outside))

	sum, err := actions.SumCompletedPoints(ctx, user, g.Window())
	require.NoError(t, err)
	assert.Equal(t, 30, sum)

	require.NoError(t, goals.MarkAchieved(ctx, g.ID, today))
	assert.ErrorIs(t, goals.MarkAchieved(ctx, g.ID, today), shared.ErrGoalAlreadyAchieved)

	a := goal.NewAchievementForGoal(g, today)
	require.NoError(t, achievements.Create(ctx, a))
	assert.ErrorIs(t, achievements.Create(ctx, goal.NewAchievementForGoal(g, today)), shared.ErrAchievementExists)

	found, err := achievements.GetByGoal(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	counts, err := goals.CountByUser(ctx, user, today)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Achieved)
	assert.Zero(t, counts.Active)
}

func TestHabitEntries(t *testing.T) {
	conn := connect(t)
	ctx := context.Background()
	repo := postgres.NewHabitRepository(conn)
	user := uniqueUser()

	h, err := habit.NewHabit(habit.NewHabitParams{UserID: user, Name: "Read"}, day(2025, 10, 1))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, h))

	entry := &habit.Entry{HabitID: h.ID, UserID: user, Date: day(2025, 10, 14), Count: 2, Notes: "20 pages"}
	require.NoError(t, repo.SaveEntry(ctx, entry))
	entry.Count = 3
	require.NoError(t, repo.SaveEntry(ctx, entry))

	got, err := repo.GetEntry(ctx, h.ID, user, day(2025, 10, 14))
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, "20 pages", got.Notes)

	entries, err := repo.ListEntries(ctx, h.ID, day(2025, 10, 1), day(2025, 10, 31))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, repo.DeleteEntry(ctx, h.ID, user, day(2025, 10, 14)))
	_, err = repo.GetEntry(ctx, h.ID, user, day(2025, 10, 14))
	assert.True(t, shared.IsNotFound(err))
}
