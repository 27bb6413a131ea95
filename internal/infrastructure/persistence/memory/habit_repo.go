package memory

import (
	"context"
	"sort"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Ensure interfaces are met.
var _ habit.Repository = (*HabitRepository)(nil)

// --- habit.Repository ---

// HabitRepository stores habits and their daily entries.
type HabitRepository struct {
	s *Store
}

// Create stores a new habit and assigns its ID.
func (r *HabitRepository) Create(ctx context.Context, h *habit.Habit) error {
	return r.s.write(ctx, func(st *state) error {
		st.habitSeq++
		h.ID = st.habitSeq
		st.habits[h.ID] = *h
		return nil
	})
}

// GetByID returns a copy of the habit.
func (r *HabitRepository) GetByID(ctx context.Context, id int64) (*habit.Habit, error) {
	var (
		h  habit.Habit
		ok bool
	)
	r.s.read(func(st *state) { h, ok = st.habits[id] })
	if !ok {
		return nil, shared.ErrHabitNotFound
	}
	return &h, nil
}

// ListByUser returns the user's habits by ID.
func (r *HabitRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*habit.Habit, error) {
	var out []*habit.Habit
	r.s.read(func(st *state) {
		for _, h := range st.habits {
			if h.UserID != userID || (activeOnly && !h.IsActive) {
				continue
			}
			h := h
			out = append(out, &h)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetEntry returns the entry for a day.
func (r *HabitRepository) GetEntry(ctx context.Context, habitID int64, userID string, date time.Time) (*habit.Entry, error) {
	var (
		e  habit.Entry
		ok bool
	)
	r.s.read(func(st *state) { e, ok = st.entries[newEntryKey(habitID, userID, date)] })
	if !ok {
		return nil, shared.ErrHabitEntryNotFound
	}
	return &e, nil
}

// SaveEntry inserts or replaces the entry for its (habit, user, date).
func (r *HabitRepository) SaveEntry(ctx context.Context, e *habit.Entry) error {
	return r.s.write(ctx, func(st *state) error {
		key := newEntryKey(e.HabitID, e.UserID, e.Date)
		if existing, ok := st.entries[key]; ok {
			e.ID = existing.ID
		} else {
			st.entrySeq++
			e.ID = st.entrySeq
		}
		st.entries[key] = *e
		return nil
	})
}

// DeleteEntry removes the entry for a day.
func (r *HabitRepository) DeleteEntry(ctx context.Context, habitID int64, userID string, date time.Time) error {
	return r.s.write(ctx, func(st *state) error {
		key := newEntryKey(habitID, userID, date)
		if _, ok := st.entries[key]; !ok {
			return shared.ErrHabitEntryNotFound
		}
		delete(st.entries, key)
		return nil
	})
}

// ListEntries returns the habit's entries in [from, to] by date. Zero
// bounds are open.
func (r *HabitRepository) ListEntries(ctx context.Context, habitID int64, from, to time.Time) ([]*habit.Entry, error) {
	var out []*habit.Entry
	r.s.read(func(st *state) {
		for k, e := range st.entries {
			if k.habitID != habitID {
				continue
			}
			if !from.IsZero() && e.Date.Before(from) {
				continue
			}
			if !to.IsZero() && e.Date.After(to) {
				continue
			}
			e := e
			out = append(out, &e)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func newEntryKey(habitID int64, userID string, date time.Time) entryKey {
	d := date.UTC()
	return entryKey{
		habitID: habitID,
		userID:  userID,
		date:    time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
	}
}
