// Package main - точка входа фонового процесса движка прогресса.
//
// Worker отвечает за:
// - Приём событий выполнения действий из очереди AMQP
// - Сброс дневных, недельных и месячных очков по расписанию
// - Ночную сверку серий активности
// - Пересылку доменных событий в обменник AMQP
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streadway/amqp"

	"github.com/alem-hub/progress-engine/config"
	"github.com/alem-hub/progress-engine/internal/app"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/messaging"
	"github.com/alem-hub/progress-engine/internal/infrastructure/scheduler"
	"github.com/alem-hub/progress-engine/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log, logCloser, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: logger.Format(cfg.Log.Format),
		File:   cfg.Log.File,
		Prefix: "worker",

		ReportCaller: cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	log.Info("starting progress engine worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"driver", cfg.Database.Driver,
		"timezone", cfg.Engine.Timezone,
		"lock_backend", cfg.Engine.LockBackend,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. СБОРКА ДВИЖКА (хранилище, миграции, Redis, шина событий, команды)
	// ─────────────────────────────────────────────────────────────────────────
	engine, err := app.New(ctx, cfg, log, app.Options{
		AsyncEvents:  true,
		RemoteEvents: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer func() {
		log.Info("closing engine...")
		if err := engine.Close(); err != nil {
			log.Warn("engine close failed", "error", err)
		}
	}()
	log.Info("engine ready", "redis", engine.Cache != nil)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. AMQP: ПРИЁМ ДЕЙСТВИЙ И ПЕРЕСЫЛКА СОБЫТИЙ (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		broker   *messaging.Broker
		consumer *messaging.ActionConsumer
	)
	if cfg.AMQP.Enabled {
		amqpLog := log.With(logger.Component("amqp"))
		log.Info("connecting to broker...")
		broker, err = messaging.DialBroker(ctx, messaging.AMQPConfig{
			URL:            cfg.AMQP.URL,
			Queue:          cfg.AMQP.Queue,
			EventsExchange: cfg.AMQP.EventsExchange,
			Prefetch:       cfg.AMQP.Prefetch,
			HandleTimeout:  cfg.AMQP.HandleTimeout,
		}, amqpLog)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer func() {
			log.Info("closing broker connection...")
			if err := broker.Close(); err != nil {
				log.Warn("broker close failed", "error", err)
			}
		}()

		if cfg.AMQP.EventsExchange != "" && cfg.Features.IsEnabled(config.FeatureEventForwarding) {
			if err := messaging.NewEventForwarder(broker).Register(engine.Events); err != nil {
				return fmt.Errorf("failed to register event forwarder: %w", err)
			}
			log.Info("event forwarding enabled", "exchange", cfg.AMQP.EventsExchange)
		}

		consumer = messaging.NewActionConsumer(engine.RecordCompletion, engine.RevokeCompletion, cfg.AMQP.HandleTimeout, amqpLog)
		if err := consumer.Start(ctx, broker); err != nil {
			return fmt.Errorf("failed to start action consumer: %w", err)
		}
		log.Info("action consumer started", "queue", cfg.AMQP.Queue)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		schedLog := log.With(logger.Component("scheduler"))
		sched = scheduler.New(scheduler.Config{
			Logger:   schedLog,
			Timezone: cfg.Engine.Location,
		})
		if err := registerJobs(sched, engine, cfg, schedLog); err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		for _, info := range sched.ListJobs() {
			log.Info("scheduled", "job", info.Name, "schedule", info.Schedule, "enabled", info.Enabled, "next_run", info.NextRun.Format(time.RFC3339))
		}

		// Серии могли устареть, пока воркер был остановлен.
		if cfg.Features.IsEnabled(config.FeatureStreakReconcile) {
			if res, err := sched.RunNow(ctx, jobs.ReconcileStreaksJobName); err != nil {
				log.Warn("startup reconcile failed", "error", err)
			} else {
				log.Info("startup reconcile done", "duration", res.Duration.String())
			}
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ОЖИДАНИЕ СИГНАЛА
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("progress engine worker is running")

	// nil-канал блокирует навсегда, если AMQP выключен
	var brokerClosed <-chan *amqp.Error
	if broker != nil {
		brokerClosed = broker.Closed()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case amqpErr := <-brokerClosed:
		runErr = fmt.Errorf("broker connection lost: %v", amqpErr)
		log.Error("broker connection lost", "error", amqpErr)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if sched != nil && sched.IsRunning() {
			if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
				log.Warn("scheduler stop failed", "error", err)
			}
			for _, res := range sched.History(20) {
				if !res.Success {
					log.Warn("job failed during this run", "job", res.JobName, "started_at", res.StartedAt.Format(time.RFC3339), "error", res.Error)
				}
			}
		}
		if consumer != nil {
			consumer.Wait()
		}
	}()

	select {
	case <-done:
		log.Info("shutdown completed successfully")
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("shutdown timed out")
	}

	if dlq := engine.Events.DeadLetterQueue(); dlq != nil && dlq.Size() > 0 {
		log.Warn("dead letter queue is not empty", "size", dlq.Size())
		for _, entry := range dlq.Drain() {
			log.Warn("undelivered event",
				"event_type", entry.Event.EventType(),
				"aggregate_id", entry.Event.AggregateID(),
				"subscription", entry.Subscription,
				"attempts", entry.Attempts,
				"error", entry.Error,
			)
		}
	}
	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// registerJobs регистрирует сбросы периодов и сверку серий.
func registerJobs(s *scheduler.Scheduler, engine *app.Engine, cfg *config.Config, log *slog.Logger) error {
	register := func(job scheduler.Job, spec string, enabled bool) error {
		if err := s.RegisterSpec(job, spec); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
		// Выключенные флагом задачи остаются в списке, но не запускаются.
		return s.SetEnabled(job.Name(), enabled)
	}

	resetsOn := cfg.Features.IsEnabled(config.FeaturePeriodResets)
	resets := map[shared.Period]string{
		shared.PeriodDaily:   cfg.Scheduler.DailyResetCron,
		shared.PeriodWeekly:  cfg.Scheduler.WeeklyResetCron,
		shared.PeriodMonthly: cfg.Scheduler.MonthlyResetCron,
	}
	for period, spec := range resets {
		if spec == "" {
			spec = jobs.DefaultResetSchedules[period]
		}
		job := jobs.NewResetPeriodJob(engine.ResetPeriod, period, cfg.Scheduler.JobTimeout, log)
		if err := register(job, spec, resetsOn); err != nil {
			return err
		}
	}

	spec := cfg.Scheduler.ReconcileCron
	if spec == "" {
		spec = jobs.DefaultReconcileSchedule
	}
	job := jobs.NewReconcileStreaksJob(engine.ReconcileStreak, cfg.Scheduler.JobTimeout, log)
	return register(job, spec, cfg.Features.IsEnabled(config.FeatureStreakReconcile))
}
