package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/application/saga"
	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.db")
	s, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type nopPublisher struct{}

func (nopPublisher) Publish(shared.Event) error { return nil }

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "progress.db")
	ctx := context.Background()

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProgressRepository_VersionedSave(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	repo := s.Progress()

	rec := progress.NewRecord("u1")
	_, err := rec.Award(shared.Points(30), day(2025, 10, 15))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	stale := progress.NewRecord("u1")
	assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrVersionConflict)

	loaded, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, loaded.TotalPoints)
	assert.Equal(t, day(2025, 10, 15), loaded.LastActivityDate)

	loaded.TotalPoints = 31
	require.NoError(t, repo.Save(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	rec.TotalPoints = 99
	assert.ErrorIs(t, repo.Save(ctx, rec), shared.ErrVersionConflict)

	_, err = repo.Get(ctx, "nobody")
	assert.True(t, shared.IsNotFound(err))
}

func TestProgressRepository_ResetAndStale(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	repo := s.Progress()

	for id, last := range map[string]time.Time{"a": day(2025, 10, 14), "b": day(2025, 10, 1)} {
		rec := progress.NewRecord(id)
		_, err := rec.Award(shared.Points(10), last)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, rec))
	}

	ids, err := repo.FindStaleStreaks(ctx, day(2025, 10, 15), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	n, err := repo.ResetPeriod(ctx, shared.PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	a, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, a.DailyPoints)
	assert.Equal(t, 10, a.WeeklyPoints)
	assert.Equal(t, int64(2), a.Version)
}

func TestLedger_EndToEnd(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	clock := timeutil.FixedClock{At: time.Date(2025, 10, 15, 8, 0, 0, 0, time.UTC)}

	g, err := goal.NewGoal(goal.NewGoalParams{
		UserID: "u1", Title: "October", TargetPoints: 100,
		StartDate: day(2025, 10, 1), EndDate: day(2025, 10, 31),
	}, clock.Now())
	require.NoError(t, err)
	require.NoError(t, s.Goals().Create(ctx, g))

	unlocker := saga.NewGoalUnlocker(s.Goals(), s.Achievements(), s.Actions(), logger.Nop())
	ledger := command.NewLedger(s.Progress(), unlocker, s, command.NewLocalLocker(), nopPublisher{}, clock, logger.Nop(), command.DefaultLedgerConfig())
	complete := command.NewRecordCompletionHandler(ledger, s.Actions(), logger.Nop(), command.DefaultRecordCompletionConfig())

	res, err := complete.Handle(ctx, command.RecordCompletionCommand{UserID: "u1", ActionID: "t1", Points: 120})
	require.NoError(t, err)
	require.Len(t, res.Award.Unlocked, 1)

	dup, err := complete.Handle(ctx, command.RecordCompletionCommand{UserID: "u1", ActionID: "t1", Points: 120})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)

	rec, err := s.Progress().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 120+20, rec.TotalPoints)

	stored, err := s.Goals().GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, stored.Achieved)
	require.NotNil(t, stored.AchievedAt)
	assert.ErrorIs(t, s.Goals().MarkAchieved(ctx, g.ID, clock.Now()), shared.ErrGoalAlreadyAchieved)

	list, err := s.Achievements().ListByUser(ctx, "u1", shared.NewPagination(1, 10))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "October", list[0].Title)
	assert.ErrorIs(t, s.Achievements().Create(ctx, goal.NewAchievementForGoal(stored, clock.Now())), shared.ErrAchievementExists)

	a, err := s.Actions().Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, activity.KindTask, a.Kind)
	assert.Equal(t, day(2025, 10, 15), a.CompletedAt)
}

func TestWithinTx_RollsBack(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		rec := progress.NewRecord("u1")
		if err := s.Progress().Save(ctx, rec); err != nil {
			return err
		}
		return shared.ErrVersionConflict
	})
	require.ErrorIs(t, err, shared.ErrVersionConflict)

	_, err = s.Progress().Get(ctx, "u1")
	assert.True(t, shared.IsNotFound(err))
}

func TestHabitRepository_Entries(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	repo := s.Habits()

	h, err := habit.NewHabit(habit.NewHabitParams{UserID: "u1", Name: "Stretch"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, h))

	for _, d := range []time.Time{day(2025, 10, 1), day(2025, 10, 5), day(2025, 10, 9)} {
		require.NoError(t, repo.SaveEntry(ctx, &habit.Entry{HabitID: h.ID, UserID: "u1", Date: d, Count: 1}))
	}

	e, err := repo.GetEntry(ctx, h.ID, "u1", day(2025, 10, 5))
	require.NoError(t, err)
	e.Count = 4
	require.NoError(t, repo.SaveEntry(ctx, e))

	all, err := repo.ListEntries(ctx, h.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 4, all[1].Count)

	ranged, err := repo.ListEntries(ctx, h.ID, day(2025, 10, 2), day(2025, 10, 9))
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	require.NoError(t, repo.DeleteEntry(ctx, h.ID, "u1", day(2025, 10, 1)))
	assert.ErrorIs(t, repo.DeleteEntry(ctx, h.ID, "u1", day(2025, 10, 1)), shared.ErrHabitEntryNotFound)
}
