package memory

import (
	"context"
	"sort"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Ensure interfaces are met.
var _ progress.Repository = (*ProgressRepository)(nil)
var _ activity.Repository = (*ActionRepository)(nil)

// --- progress.Repository ---

// ProgressRepository stores progress records.
type ProgressRepository struct {
	s *Store
}

// Get returns a copy of the user's record.
func (r *ProgressRepository) Get(ctx context.Context, userID string) (*progress.Record, error) {
	var (
		rec progress.Record
		ok  bool
	)
	r.s.read(func(st *state) { rec, ok = st.records[userID] })
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return &rec, nil
}

// GetForUpdate is Get; transactions are already serialized.
func (r *ProgressRepository) GetForUpdate(ctx context.Context, userID string) (*progress.Record, error) {
	return r.Get(ctx, userID)
}

// Save stores the record if its version matches the stored one.
func (r *ProgressRepository) Save(ctx context.Context, record *progress.Record) error {
	return r.s.write(ctx, func(st *state) error {
		current, exists := st.records[record.UserID]
		switch {
		case record.Version == 0 && exists:
			return shared.ErrVersionConflict
		case record.Version != 0 && (!exists || current.Version != record.Version):
			return shared.ErrVersionConflict
		}

		stored := *record
		stored.Version++
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = stored.UpdatedAt
		}
		st.records[record.UserID] = stored
		record.Version = stored.Version
		return nil
	})
}

// ResetPeriod zeroes the period counter of every record that has one.
func (r *ProgressRepository) ResetPeriod(ctx context.Context, period shared.Period) (int64, error) {
	if !period.IsValid() {
		return 0, shared.ErrInvalidPeriod
	}

	var affected int64
	err := r.s.write(ctx, func(st *state) error {
		for id, rec := range st.records {
			before := rec
			_ = rec.ResetPeriod(period)
			if rec == before {
				continue
			}
			rec.Version++
			rec.UpdatedAt = time.Now().UTC()
			st.records[id] = rec
			affected++
		}
		return nil
	})
	return affected, err
}

// FindStaleStreaks returns users with a streak whose last activity is
// before yesterday, ordered by user id.
func (r *ProgressRepository) FindStaleStreaks(ctx context.Context, today time.Time, limit int) ([]string, error) {
	yesterday := today.AddDate(0, 0, -1)

	var ids []string
	r.s.read(func(st *state) {
		for id, rec := range st.records {
			if rec.StreakDays > 0 && rec.LastActivityDate.Before(yesterday) {
				ids = append(ids, id)
			}
		}
	})

	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Count returns the number of records.
func (r *ProgressRepository) Count(ctx context.Context) (int, error) {
	var n int
	r.s.read(func(st *state) { n = len(st.records) })
	return n, nil
}

// --- activity.Repository ---

// ActionRepository stores completable actions.
type ActionRepository struct {
	s *Store
}

// Get returns a copy of the action.
func (r *ActionRepository) Get(ctx context.Context, id string) (*activity.Action, error) {
	var (
		a  activity.Action
		ok bool
	)
	r.s.read(func(st *state) { a, ok = st.actions[id] })
	if !ok {
		return nil, shared.ErrActionNotFound
	}
	return &a, nil
}

// Save inserts or replaces the action.
func (r *ActionRepository) Save(ctx context.Context, action *activity.Action) error {
	if action.ID == "" {
		return shared.ErrInvalidActionID
	}
	return r.s.write(ctx, func(st *state) error {
		st.actions[action.ID] = *action
		return nil
	})
}

// SumCompletedPoints sums points of the user's actions completed in window.
func (r *ActionRepository) SumCompletedPoints(ctx context.Context, userID string, window shared.DateRange) (int, error) {
	var actions []*activity.Action
	r.s.read(func(st *state) {
		for _, a := range st.actions {
			if a.UserID == userID {
				a := a
				actions = append(actions, &a)
			}
		}
	})
	return activity.SumCompletedPoints(actions, window), nil
}

// CountTasks counts the user's task actions.
func (r *ActionRepository) CountTasks(ctx context.Context, userID string) (activity.Counts, error) {
	var c activity.Counts
	r.s.read(func(st *state) {
		for _, a := range st.actions {
			if a.UserID != userID || a.Kind != activity.KindTask {
				continue
			}
			c.Total++
			if a.Completed {
				c.Completed++
			}
		}
	})
	return c, nil
}
