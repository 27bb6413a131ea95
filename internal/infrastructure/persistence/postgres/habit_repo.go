package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Ensure interfaces are met.
var _ habit.Repository = (*HabitRepository)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// HABIT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// HabitRepository implements habit.Repository for PostgreSQL.
type HabitRepository struct {
	conn *Connection
}

// NewHabitRepository creates a new HabitRepository.
func NewHabitRepository(conn *Connection) *HabitRepository {
	return &HabitRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Habits
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts the habit and assigns its ID.
func (r *HabitRepository) Create(ctx context.Context, h *habit.Habit) error {
	query := `
		INSERT INTO habits (user_id, name, description, frequency, target_count, color, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.conn.q(ctx).QueryRow(ctx, query,
		h.UserID, h.Name, h.Description, string(h.Frequency), h.TargetCount, h.Color, h.IsActive, h.CreatedAt,
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to create habit: %w", err)
	}
	return nil
}

// GetByID returns a habit.
func (r *HabitRepository) GetByID(ctx context.Context, id int64) (*habit.Habit, error) {
	query := `
		SELECT id, user_id, name, description, frequency, target_count, color, is_active, created_at
		FROM habits WHERE id = $1
	`
	h, err := scanHabit(r.conn.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrHabitNotFound
		}
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}
	return h, nil
}

// ListByUser returns the user's habits ordered by ID.
func (r *HabitRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*habit.Habit, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, user_id, name, description, frequency, target_count, color, is_active, created_at
		FROM habits WHERE user_id = $1
	`)
	if activeOnly {
		sb.WriteString(" AND is_active")
	}
	sb.WriteString(" ORDER BY id")

	rows, err := r.conn.q(ctx).Query(ctx, sb.String(), userID)
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

func scanHabit(row pgx.Row) (*habit.Habit, error) {
	var (
		h    habit.Habit
		freq string
	)
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &freq, &h.TargetCount, &h.Color, &h.IsActive, &h.CreatedAt); err != nil {
		return nil, err
	}
	h.Frequency = habit.Frequency(freq)
	return &h, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Entries
// ─────────────────────────────────────────────────────────────────────────────

// GetEntry returns the entry for a day.
func (r *HabitRepository) GetEntry(ctx context.Context, habitID int64, userID string, date time.Time) (*habit.Entry, error) {
	query := `
		SELECT id, habit_id, user_id, date, count, notes, updated_at
		FROM habit_entries WHERE habit_id = $1 AND user_id = $2 AND date = $3
	`
	e, err := scanEntry(r.conn.q(ctx).QueryRow(ctx, query, habitID, userID, asDate(date)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrHabitEntryNotFound
		}
		return nil, fmt.Errorf("failed to get habit entry: %w", err)
	}
	return e, nil
}

// SaveEntry inserts or replaces the entry for its (habit, user, date).
func (r *HabitRepository) SaveEntry(ctx context.Context, e *habit.Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO habit_entries (habit_id, user_id, date, count, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (habit_id, user_id, date) DO UPDATE SET
			count = EXCLUDED.count,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	err := r.conn.q(ctx).QueryRow(ctx, query,
		e.HabitID, e.UserID, asDate(e.Date), e.Count, e.Notes, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to save habit entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the entry for a day.
func (r *HabitRepository) DeleteEntry(ctx context.Context, habitID int64, userID string, date time.Time) error {
	tag, err := r.conn.q(ctx).Exec(ctx,
		`DELETE FROM habit_entries WHERE habit_id = $1 AND user_id = $2 AND date = $3`,
		habitID, userID, asDate(date),
	)
	if err != nil {
		return fmt.Errorf("failed to delete habit entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrHabitEntryNotFound
	}
	return nil
}

// ListEntries returns the habit's entries in [from, to] by date. Zero bounds
// are open.
func (r *HabitRepository) ListEntries(ctx context.Context, habitID int64, from, to time.Time) ([]*habit.Entry, error) {
	query := `
		SELECT id, habit_id, user_id, date, count, notes, updated_at
		FROM habit_entries
		WHERE habit_id = $1
		  AND ($2::date IS NULL OR date >= $2)
		  AND ($3::date IS NULL OR date <= $3)
		ORDER BY date
	`
	rows, err := r.conn.q(ctx).Query(ctx, query, habitID, nullDate(from), nullDate(to))
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

func scanEntry(row pgx.Row) (*habit.Entry, error) {
	var e habit.Entry
	if err := row.Scan(&e.ID, &e.HabitID, &e.UserID, &e.Date, &e.Count, &e.Notes, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Date = asDate(e.Date)
	return &e, nil
}
