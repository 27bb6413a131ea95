// Package memory implements in-memory repositories for tests, dry runs and
// the CLI's ephemeral mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
)

// Store holds all engine data in memory.
//
// Transactions are serialized: WithinTx holds txMu for its whole duration
// and restores a snapshot when fn fails. Writes outside a transaction take
// txMu too, so a rollback never discards them.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state
}

type entryKey struct {
	habitID int64
	userID  string
	date    time.Time
}

type state struct {
	records      map[string]progress.Record
	actions      map[string]activity.Action
	goals        map[int64]goal.Goal
	achievements map[int64]goal.Achievement
	habits       map[int64]habit.Habit
	entries      map[entryKey]habit.Entry

	goalSeq        int64
	achievementSeq int64
	habitSeq       int64
	entrySeq       int64
}

func newState() *state {
	return &state{
		records:      make(map[string]progress.Record),
		actions:      make(map[string]activity.Action),
		goals:        make(map[int64]goal.Goal),
		achievements: make(map[int64]goal.Achievement),
		habits:       make(map[int64]habit.Habit),
		entries:      make(map[entryKey]habit.Entry),
	}
}

func (s *state) clone() *state {
	c := *s
	c.records = cloneMap(s.records)
	c.actions = cloneMap(s.actions)
	c.goals = cloneMap(s.goals)
	c.achievements = cloneMap(s.achievements)
	c.habits = cloneMap(s.habits)
	c.entries = cloneMap(s.entries)
	return &c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// WithinTx runs fn as one transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// read runs fn under the data lock.
func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// write runs fn under the data lock, joining the caller's transaction if any.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Progress returns the progress repository.
func (s *Store) Progress() *ProgressRepository { return &ProgressRepository{s: s} }

// Actions returns the action repository.
func (s *Store) Actions() *ActionRepository { return &ActionRepository{s: s} }

// Goals returns the goal repository.
func (s *Store) Goals() *GoalRepository { return &GoalRepository{s: s} }

// Achievements returns the achievement repository.
func (s *Store) Achievements() *AchievementRepository { return &AchievementRepository{s: s} }

// Habits returns the habit repository.
func (s *Store) Habits() *HabitRepository { return &HabitRepository{s: s} }
