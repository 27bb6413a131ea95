package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Ensure interfaces are met.
var _ habit.Repository = (*HabitRepository)(nil)

// HabitRepository implements habit.Repository on SQLite.
type HabitRepository struct {
	s *Store
}

const habitColumns = `id, user_id, name, description, frequency, target_count, color, is_active, created_at`

// Create inserts the habit and assigns its ID.
func (r *HabitRepository) Create(ctx context.Context, h *habit.Habit) error {
	res, err := r.s.q(ctx).ExecContext(ctx, `
		INSERT INTO habits (user_id, name, description, frequency, target_count, color, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.UserID, h.Name, h.Description, string(h.Frequency), h.TargetCount, h.Color, boolInt(h.IsActive), formatTime(h.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create habit: %w", err)
	}
	h.ID, err = res.LastInsertId()
	return err
}

// GetByID returns a habit.
func (r *HabitRepository) GetByID(ctx context.Context, id int64) (*habit.Habit, error) {
	h, err := scanHabit(r.s.q(ctx).QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ?`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, shared.ErrHabitNotFound
		}
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}
	return h, nil
}

// ListByUser returns the user's habits ordered by ID.
func (r *HabitRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*habit.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := r.s.q(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	var out []*habit.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHabit(row scanner) (*habit.Habit, error) {
	var (
		h         habit.Habit
		freq      string
		active    int
		createdAt string
	)
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &freq, &h.TargetCount, &h.Color, &active, &createdAt); err != nil {
		return nil, err
	}
	h.Frequency = habit.Frequency(freq)
	h.IsActive = active != 0

	var err error
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &h, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Entries
// ─────────────────────────────────────────────────────────────────────────────

const entryColumns = `id, habit_id, user_id, date, count, notes, updated_at`

// GetEntry returns the entry for a day.
func (r *HabitRepository) GetEntry(ctx context.Context, habitID int64, userID string, date time.Time) (*habit.Entry, error) {
	e, err := scanEntry(r.s.q(ctx).QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM habit_entries WHERE habit_id = ? AND user_id = ? AND date = ?`,
		habitID, userID, formatDate(date)))
	if err != nil {
		if isNoRows(err) {
			return nil, shared.ErrHabitEntryNotFound
		}
		return nil, fmt.Errorf("failed to get habit entry: %w", err)
	}
	return e, nil
}

// SaveEntry inserts or replaces the entry for its (habit, user, date).
func (r *HabitRepository) SaveEntry(ctx context.Context, e *habit.Entry) error {
	err := r.s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO habit_entries (habit_id, user_id, date, count, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (habit_id, user_id, date) DO UPDATE SET
			count = excluded.count,
			notes = excluded.notes,
			updated_at = excluded.updated_at
		RETURNING id`,
		e.HabitID, e.UserID, formatDate(e.Date), e.Count, e.Notes, formatTime(e.UpdatedAt),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to save habit entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the entry for a day.
func (r *HabitRepository) DeleteEntry(ctx context.Context, habitID int64, userID string, date time.Time) error {
	res, err := r.s.q(ctx).ExecContext(ctx,
		`DELETE FROM habit_entries WHERE habit_id = ? AND user_id = ? AND date = ?`,
		habitID, userID, formatDate(date))
	if err != nil {
		return fmt.Errorf("failed to delete habit entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrHabitEntryNotFound
	}
	return nil
}

// ListEntries returns the habit's entries in [from, to] by date. Zero bounds
// are open.
func (r *HabitRepository) ListEntries(ctx context.Context, habitID int64, from, to time.Time) ([]*habit.Entry, error) {
	rows, err := r.s.q(ctx).QueryContext(ctx, `SELECT `+entryColumns+` FROM habit_entries
		WHERE habit_id = ?1
		  AND (?2 IS NULL OR date >= ?2)
		  AND (?3 IS NULL OR date <= ?3)
		ORDER BY date`,
		habitID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query habit entries: %w", err)
	}
	defer rows.Close()

	var out []*habit.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row scanner) (*habit.Entry, error) {
	var (
		e         habit.Entry
		date      sql.NullString
		updatedAt string
	)
	if err := row.Scan(&e.ID, &e.HabitID, &e.UserID, &date, &e.Count, &e.Notes, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if e.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
