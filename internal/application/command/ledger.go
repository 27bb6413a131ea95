package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/saga"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/retry"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINTS LEDGER
// Owns every mutation of a user's progress record.
//
// Each mutation runs in the user's critical section:
// 1. Per-user lock (in-process or Redis)
// 2. Storage transaction with the record locked for update
// 3. Optimistic version check on save, retried on conflict
//
// Events collected during the section are published after it commits.
// ══════════════════════════════════════════════════════════════════════════════

// Award sources recorded on PointsAwarded events.
const (
	SourceManual    = "manual"
	SourceAction    = "action"
	SourceGoalBonus = "goal_bonus"
)

// LedgerConfig contains configuration for the ledger.
type LedgerConfig struct {
	// MaxAttempts - how many times a conflicting section is retried.
	MaxAttempts int

	// RetryDelay - initial delay between conflict retries.
	RetryDelay time.Duration
}

// DefaultLedgerConfig returns default configuration.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxAttempts: 5,
		RetryDelay:  10 * time.Millisecond,
	}
}

// Ledger applies awards and removals to progress records.
type Ledger struct {
	progressRepo   progress.Repository
	unlocker       *saga.GoalUnlocker
	txManager      TxManager
	locker         UserLocker
	eventPublisher shared.EventPublisher
	clock          timeutil.Clock
	retrier        *retry.Retrier
	logger         *slog.Logger
	config         LedgerConfig
}

// NewLedger creates a new Ledger.
func NewLedger(
	progressRepo progress.Repository,
	unlocker *saga.GoalUnlocker,
	txManager TxManager,
	locker UserLocker,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
	logger *slog.Logger,
	config LedgerConfig,
) *Ledger {
	defaults := DefaultLedgerConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	if txManager == nil {
		txManager = PassthroughTx{}
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if clock == nil {
		clock = timeutil.FixedClock{At: time.Now().UTC()}
	}
	if logger == nil {
		logger = slog.Default()
	}

	log := logger.With("component", "ledger")
	onConflict := retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Debug("version conflict, retrying", "attempt", attempt, "delay", delay, "error", err)
	})

	return &Ledger{
		progressRepo:   progressRepo,
		unlocker:       unlocker,
		txManager:      txManager,
		locker:         locker,
		eventPublisher: eventPublisher,
		clock:          clock,
		retrier:        retry.OptimisticLockRetrier(config.MaxAttempts, config.RetryDelay, shared.IsConflict, onConflict),
		logger:         log,
		config:         config,
	}
}

// Clock returns the ledger's clock.
func (l *Ledger) Clock() timeutil.Clock {
	return l.clock
}

// Execute runs fn inside the user's critical section. fn may run more than
// once when the record was modified concurrently; it must only touch storage
// through the ctx it receives. A zero today means the clock's current date.
func (l *Ledger) Execute(
	ctx context.Context,
	op, userID string,
	today time.Time,
	fn func(ctx context.Context, s *Session) error,
) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%s: %w", op, shared.ErrInvalidUserID)
	}
	if today.IsZero() {
		today = timeutil.Today(l.clock)
	} else {
		today = timeutil.DateOf(today)
	}

	unlock, err := l.locker.LockUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: lock user %s: %w", op, userID, err)
	}
	defer unlock()

	var events []shared.Event
	attempt := 0
	err = l.retrier.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			l.logger.Debug("retrying after conflict", logger.Operation(op), logger.UserID(userID), "attempt", attempt)
		}
		return l.txManager.WithinTx(ctx, func(ctx context.Context) error {
			s := newSession(ctx, l, userID, today)
			if err := fn(ctx, s); err != nil {
				return err
			}
			if err := s.flush(); err != nil {
				return err
			}
			events = s.events
			return nil
		})
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			l.logger.Warn("concurrency retries exhausted", logger.Operation(op), logger.UserID(userID), "attempts", exhausted.Attempts)
			return shared.ConcurrencyExhausted(op, exhausted.Attempts, exhausted.Err)
		}
		return err
	}

	l.publish(events)
	return nil
}

// Award credits points to the user and unlocks goals the award completes.
func (l *Ledger) Award(ctx context.Context, userID string, points int, today time.Time) (*AwardResult, error) {
	var result *AwardResult
	err := l.Execute(ctx, "award", userID, today, func(ctx context.Context, s *Session) error {
		var err error
		result, err = s.Award(points, SourceManual, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Remove debits points from the user. A user without a record is a no-op.
func (l *Ledger) Remove(ctx context.Context, userID string, points int) (*RemoveResult, error) {
	var result *RemoveResult
	err := l.Execute(ctx, "remove", userID, time.Time{}, func(ctx context.Context, s *Session) error {
		var err error
		result, err = s.Remove(points, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *Ledger) publish(events []shared.Event) {
	if l.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := l.eventPublisher.Publish(event); err != nil {
			l.logger.Warn("failed to publish event",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// AwardResult contains the result of an award.
type AwardResult struct {
	// UserID - the credited user.
	UserID string

	// Points - points credited by the award itself.
	Points int

	// BonusPoints - goal bonuses credited during the award.
	BonusPoints int

	// LevelUps - levels gained, each with its own bonus.
	LevelUps []progress.LevelUp

	// Unlocked - goals unlocked by the award.
	Unlocked []saga.Unlocked

	// Record - the record after the award.
	Record *progress.Record
}

// LeveledUp reports whether at least one level was gained.
func (r *AwardResult) LeveledUp() bool {
	return len(r.LevelUps) > 0
}

// RemoveResult contains the result of a removal.
type RemoveResult struct {
	// UserID - the debited user.
	UserID string

	// Requested - points requested for removal.
	Requested int

	// Applied - false when the user had no record.
	Applied bool

	// OldLevel - level before the removal.
	OldLevel shared.Level

	// NewLevel - level after the removal.
	NewLevel shared.Level

	// Record - the record after the removal, nil if none exists.
	Record *progress.Record
}

// Session is one attempt of a user's critical section. It is only valid
// inside the function passed to Ledger.Execute.
type Session struct {
	ctx    context.Context
	ledger *Ledger
	userID string
	today  time.Time

	record *progress.Record
	loaded bool
	dirty  bool
	events []shared.Event
}

func newSession(ctx context.Context, l *Ledger, userID string, today time.Time) *Session {
	return &Session{ctx: ctx, ledger: l, userID: userID, today: today}
}

// UserID returns the user the session is bound to.
func (s *Session) UserID() string {
	return s.userID
}

// Today returns the session date.
func (s *Session) Today() time.Time {
	return s.today
}

// Now returns the current timestamp.
func (s *Session) Now() time.Time {
	return s.ledger.clock.Now()
}

// Emit queues events for publication after commit.
func (s *Session) Emit(events ...shared.Event) {
	s.events = append(s.events, events...)
}

// Record returns the user's record locked for update, or nil if the user has none.
func (s *Session) Record() (*progress.Record, error) {
	if s.loaded {
		return s.record, nil
	}

	record, err := s.ledger.progressRepo.GetForUpdate(s.ctx, s.userID)
	switch {
	case shared.IsNotFound(err):
		record = nil
	case err != nil:
		return nil, fmt.Errorf("load progress: %w", err)
	}

	s.record = record
	s.loaded = true
	return record, nil
}

func (s *Session) recordOrNew() (*progress.Record, error) {
	record, err := s.Record()
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = progress.NewRecord(s.userID)
		record.CreatedAt = s.Now()
		s.record = record
	}
	return record, nil
}

// Award credits points, updates level and streak, then unlocks every active
// goal the award completes.
func (s *Session) Award(points int, source, actionID string) (*AwardResult, error) {
	p, err := shared.NewPoints(points)
	if err != nil {
		return nil, err
	}
	if _, err := s.recordOrNew(); err != nil {
		return nil, err
	}

	result := &AwardResult{UserID: s.userID}
	if err := s.credit(p, source, actionID, result); err != nil {
		return nil, err
	}
	result.Points = p.Int()

	if err := s.unlockGoals(result, nil); err != nil {
		return nil, err
	}

	result.Record = s.record
	return result, nil
}

// CheckGoal unlocks g if its target is reached. Calling it on an achieved
// goal is a no-op.
func (s *Session) CheckGoal(g *goal.Goal) (*AwardResult, error) {
	if _, err := s.recordOrNew(); err != nil {
		return nil, err
	}

	result := &AwardResult{UserID: s.userID}
	if err := s.unlockGoals(result, g); err != nil {
		return nil, err
	}
	result.Record = s.record
	return result, nil
}

// Remove debits points, clamping each counter at zero and re-deriving the
// level. Streak, last activity and goals are left alone.
func (s *Session) Remove(points int, actionID string) (*RemoveResult, error) {
	p, err := shared.NewPoints(points)
	if err != nil {
		return nil, err
	}

	result := &RemoveResult{UserID: s.userID, Requested: points}
	record, err := s.Record()
	if err != nil {
		return nil, err
	}
	if record == nil {
		return result, nil
	}

	outcome, err := record.Remove(p)
	if err != nil {
		return nil, err
	}
	s.dirty = true

	result.Applied = true
	result.OldLevel = outcome.OldLevel
	result.NewLevel = outcome.NewLevel
	result.Record = record

	s.Emit(shared.NewPointsRemovedEvent(
		s.userID, points, actionID,
		record.TotalPoints, record.Experience, record.Level.Int(),
	))
	return result, nil
}

// ReconcileStreak resets a streak whose last activity is older than
// yesterday. It returns true if the streak was reset.
func (s *Session) ReconcileStreak() (bool, error) {
	record, err := s.Record()
	if err != nil || record == nil {
		return false, err
	}

	lost := record.StreakDays
	if !record.ReconcileStreak(s.today) {
		return false, nil
	}
	s.dirty = true
	s.Emit(shared.NewStreakResetEvent(s.userID, lost, record.LastActivityDate))
	return true, nil
}

// credit applies one award to the loaded record.
func (s *Session) credit(points shared.Points, source, actionID string, result *AwardResult) error {
	outcome, err := s.record.Award(points, s.today)
	if err != nil {
		return err
	}
	s.dirty = true

	result.LevelUps = append(result.LevelUps, outcome.LevelUps...)

	s.Emit(shared.NewPointsAwardedEvent(
		s.userID, outcome.Points, source, actionID,
		s.record.TotalPoints, s.record.Experience, s.record.Level.Int(),
	))
	for _, up := range outcome.LevelUps {
		s.Emit(shared.NewLevelUpEvent(s.userID, up.Level.Int(), up.Bonus))
	}
	if outcome.StreakChanged() {
		s.Emit(shared.NewStreakUpdatedEvent(s.userID, outcome.OldStreak, outcome.NewStreak))
	}
	return nil
}

// unlockGoals runs the goal work-list. With target set only that goal is
// queued initially.
func (s *Session) unlockGoals(result *AwardResult, target *goal.Goal) error {
	if s.ledger.unlocker == nil {
		return nil
	}

	award := func(ctx context.Context, g *goal.Goal, bonus int) error {
		p, err := shared.NewPoints(bonus)
		if err != nil {
			return err
		}
		if err := s.credit(p, SourceGoalBonus, "", result); err != nil {
			return err
		}
		result.BonusPoints += bonus
		return nil
	}

	input := saga.UnlockInput{UserID: s.userID, Today: s.today, Now: s.Now()}

	var (
		unlocked []saga.Unlocked
		err      error
	)
	if target != nil {
		unlocked, err = s.ledger.unlocker.RunFor(s.ctx, input, target, award)
	} else {
		unlocked, err = s.ledger.unlocker.Run(s.ctx, input, award)
	}
	if err != nil {
		return err
	}

	for _, u := range unlocked {
		var achievementID int64
		if u.Achievement != nil {
			achievementID = u.Achievement.ID
		}
		s.Emit(shared.NewGoalAchievedEvent(
			s.userID, u.Goal.ID, achievementID, u.Goal.Title,
			u.Goal.TargetPoints, u.Bonus,
			string(u.Goal.Reward.Type), u.Goal.Reward.Name,
		))
	}
	result.Unlocked = append(result.Unlocked, unlocked...)
	return nil
}

// flush saves the record if the session changed it.
func (s *Session) flush() error {
	if !s.dirty || s.record == nil {
		return nil
	}
	s.record.UpdatedAt = s.Now()
	if err := s.record.Validate(); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if err := s.ledger.progressRepo.Save(s.ctx, s.record); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
