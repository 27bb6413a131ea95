package app

import (
	"context"
	"fmt"

	"github.com/alem-hub/progress-engine/config"
	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/sqlite"
)

// storage is one backend's repositories plus its transaction manager.
type storage struct {
	progress     progress.Repository
	actions      activity.Repository
	goals        goal.Repository
	achievements goal.AchievementRepository
	habits       habit.Repository
	tx           command.TxManager

	migrate  func(ctx context.Context) (int, error)
	rollback func(ctx context.Context) error // nil without down migrations
	close    func() error
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig) (*storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.URL
		if cfg.MaxConns > 0 {
			pgCfg.MaxConns = int32(cfg.MaxConns)
		}
		if cfg.MinConns > 0 {
			pgCfg.MinConns = int32(cfg.MinConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
		}
		if cfg.ConnMaxIdleTime > 0 {
			pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
		}

		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		migrator := postgres.NewMigrator(conn)
		return &storage{
			progress:     postgres.NewProgressRepository(conn),
			actions:      postgres.NewActionRepository(conn),
			goals:        postgres.NewGoalRepository(conn),
			achievements: postgres.NewAchievementRepository(conn),
			habits:       postgres.NewHabitRepository(conn),
			tx:           conn,
			migrate:      migrator.Migrate,
			rollback:     migrator.Rollback,
			close: func() error {
				conn.Close()
				return nil
			},
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return &storage{
			progress:     store.Progress(),
			actions:      store.Actions(),
			goals:        store.Goals(),
			achievements: store.Achievements(),
			habits:       store.Habits(),
			tx:           store,
			migrate:      store.Migrate,
			close:        store.Close,
		}, nil

	case config.DriverMemory:
		store := memory.New()
		return &storage{
			progress:     store.Progress(),
			actions:      store.Actions(),
			goals:        store.Goals(),
			achievements: store.Achievements(),
			habits:       store.Habits(),
			tx:           store,
			migrate:      func(context.Context) (int, error) { return 0, nil },
			close:        func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// flaggedCache serves cached snapshots only to users inside the
// cache.snapshots rollout. Invalidation always passes through.
type flaggedCache struct {
	query.SnapshotCache
	flags *config.FeatureFlags
}

func (c *flaggedCache) Get(ctx context.Context, userID string) (*query.ProgressSnapshotDTO, error) {
	if !c.flags.IsEnabledFor(config.FeatureSnapshotCache, userID) {
		return nil, nil
	}
	return c.SnapshotCache.Get(ctx, userID)
}

func (c *flaggedCache) Set(ctx context.Context, snapshot *query.ProgressSnapshotDTO) error {
	if !c.flags.IsEnabledFor(config.FeatureSnapshotCache, snapshot.UserID) {
		return nil
	}
	return c.SnapshotCache.Set(ctx, snapshot)
}
