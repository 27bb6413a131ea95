// Package app assembles the progress engine from configuration: storage,
// locking, the event bus, command and query handlers. Both the worker and
// progressctl build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alem-hub/progress-engine/config"
	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/application/eventhandler"
	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/internal/application/saga"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/messaging"
	redisstore "github.com/alem-hub/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// Options tune how the engine is assembled.
type Options struct {
	// Clock overrides the system clock (progressctl --today).
	Clock timeutil.Clock

	// AsyncEvents delivers events on worker goroutines.
	AsyncEvents bool

	// RemoteEvents shares events with other processes over Redis pub/sub.
	// Requires Redis.
	RemoteEvents bool
}

// eventBus is what the engine needs from either bus implementation.
type eventBus interface {
	shared.EventBus
	Close() error
}

// Engine holds the assembled handlers.
type Engine struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  timeutil.Clock

	// Events is where additional handlers subscribe. Handlers registered
	// here are retried and dead-lettered by the dispatcher.
	Events     *messaging.Dispatcher
	Publisher  shared.EventPublisher
	Cache      *redisstore.Cache
	Milestones *eventhandler.OnMilestoneHandler

	Ledger           *command.Ledger
	RecordCompletion *command.RecordCompletionHandler
	RevokeCompletion *command.RevokeCompletionHandler
	AdjustPoints     *command.AdjustPointsHandler
	ReconcileStreak  *command.ReconcileStreakHandler
	ResetPeriod      *command.ResetPeriodPointsHandler
	CreateGoal       *command.CreateGoalHandler
	CheckGoal        *command.CheckGoalHandler
	Habits           *command.HabitHandler

	Snapshot     *query.GetProgressSnapshotHandler
	Goals        *query.ListGoalsHandler
	HabitStats   *query.HabitStatsHandler
	UserStats    *query.GetUserStatsHandler
	Achievements *query.ListAchievementsHandler

	store   *storage
	bus     eventBus
	closers []func() error
}

// New assembles an engine. Close releases everything it opened.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	clock := opts.Clock
	if clock == nil {
		sys, err := timeutil.NewSystemClock(cfg.Engine.Timezone)
		if err != nil {
			return nil, err
		}
		clock = sys
	}

	e := &Engine{Config: cfg, Logger: logger, Clock: clock}
	ok := false
	defer func() {
		if !ok {
			_ = e.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────
	store, err := openStorage(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	e.store = store
	e.closers = append(e.closers, store.close)

	if cfg.Database.AutoMigrate {
		applied, err := store.migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if applied > 0 {
			logger.Info("migrations applied", "count", applied, "driver", cfg.Database.Driver)
		}
	}

	// ─────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────
	var snapshots query.SnapshotCache
	if cfg.Redis.Enabled {
		cache, err := redisstore.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		e.Cache = cache
		e.closers = append(e.closers, cache.Close)

		snapshots = &flaggedCache{
			SnapshotCache: redisstore.NewSnapshotCache(cache, cfg.Redis.SnapshotTTL, logger),
			flags:         cfg.Features,
		}
	}

	var locker command.UserLocker = command.NewLocalLocker()
	if cfg.Engine.LockBackend == config.LockRedis {
		if e.Cache == nil {
			return nil, errors.New("redis lock backend requires redis")
		}
		locker = redisstore.NewUserLocker(e.Cache, redisstore.LockConfig{TTL: cfg.Engine.LockTTL})
	}

	// ─────────────────────────────────────────────────────────────────────
	// Events
	// ─────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.AsyncMode = opts.AsyncEvents
	busConfig.Logger = logger
	if opts.RemoteEvents && e.Cache != nil && cfg.Features.IsEnabled(config.FeatureRemoteEvents) {
		remote, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
			Client:         e.Cache.Client(),
			Channel:        cfg.Redis.EventsChannel,
			LocalBusConfig: busConfig,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("redis event bus: %w", err)
		}
		e.bus = remote
	} else {
		e.bus = messaging.NewInMemoryEventBus(busConfig)
	}
	e.Publisher = e.bus
	e.Events = messaging.NewDispatcher(messaging.DispatcherConfig{
		Bus:                 e.bus,
		DeadLetterQueueSize: 1000,
		Logger:              logger,
	})

	if snapshots != nil {
		if err := eventhandler.NewOnProgressChangedHandler(snapshots, logger).Register(e.Events); err != nil {
			return nil, err
		}
	}
	e.Milestones = eventhandler.NewOnMilestoneHandler(logger)
	if err := e.Milestones.Register(e.Events); err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────
	// Commands
	// ─────────────────────────────────────────────────────────────────────
	unlocker := saga.NewGoalUnlocker(store.goals, store.achievements, store.actions, logger)
	e.Ledger = command.NewLedger(
		store.progress,
		unlocker,
		store.tx,
		locker,
		e.Publisher,
		clock,
		logger,
		command.LedgerConfig{MaxAttempts: cfg.Engine.MaxRetries, RetryDelay: cfg.Engine.RetryDelay},
	)
	e.RecordCompletion = command.NewRecordCompletionHandler(e.Ledger, store.actions, logger,
		command.RecordCompletionConfig{DefaultPoints: cfg.Engine.DefaultTaskPoints})
	e.RevokeCompletion = command.NewRevokeCompletionHandler(e.Ledger, store.actions, logger)
	e.AdjustPoints = command.NewAdjustPointsHandler(e.Ledger, logger)
	e.ReconcileStreak = command.NewReconcileStreakHandler(e.Ledger, store.progress, logger, command.DefaultReconcileStreakConfig())
	e.ResetPeriod = command.NewResetPeriodPointsHandler(store.progress, e.Publisher, logger)
	e.CreateGoal = command.NewCreateGoalHandler(store.goals, clock, logger)
	e.CheckGoal = command.NewCheckGoalHandler(e.Ledger, store.goals, logger)
	e.Habits = command.NewHabitHandler(store.habits, store.tx, locker, e.Publisher, clock, logger)

	// ─────────────────────────────────────────────────────────────────────
	// Queries
	// ─────────────────────────────────────────────────────────────────────
	e.Snapshot = query.NewGetProgressSnapshotHandler(store.progress, snapshots, logger)
	e.Goals = query.NewListGoalsHandler(store.goals, store.actions, clock)
	e.HabitStats = query.NewHabitStatsHandler(store.habits, clock)
	e.UserStats = query.NewGetUserStatsHandler(store.progress, store.actions, store.goals, store.achievements, clock)
	e.Achievements = query.NewListAchievementsHandler(store.achievements)

	ok = true
	return e, nil
}

// Migrate applies pending migrations and returns how many ran.
func (e *Engine) Migrate(ctx context.Context) (int, error) {
	return e.store.migrate(ctx)
}

// Rollback reverts the last applied migration. Only the postgres driver
// keeps down migrations.
func (e *Engine) Rollback(ctx context.Context) error {
	if e.store.rollback == nil {
		return fmt.Errorf("rollback is not supported by the %s driver", e.Config.Database.Driver)
	}
	return e.store.rollback(ctx)
}

// Close shuts the event bus down and releases storage and Redis, in
// reverse order of acquisition.
func (e *Engine) Close() error {
	var errs []error
	if e.bus != nil {
		if err := e.bus.Close(); err != nil {
			errs = append(errs, err)
		}
		e.bus = nil
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func redisConfig(c config.RedisConfig) redisstore.Config {
	cfg := redisstore.DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.Password = c.Password
	cfg.DB = c.DB
	if c.KeyPrefix != "" {
		cfg.KeyPrefix = c.KeyPrefix
	}
	if c.PoolSize > 0 {
		cfg.PoolSize = c.PoolSize
	}
	cfg.MinIdleConns = c.MinIdleConns
	if c.DialTimeout > 0 {
		cfg.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	return cfg
}
