package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Ensure interfaces are met.
var _ progress.Repository = (*ProgressRepository)(nil)
var _ activity.Repository = (*ActionRepository)(nil)

// ProgressRepository implements progress.Repository on SQLite.
type ProgressRepository struct {
	s *Store
}

const progressColumns = `user_id, total_points, daily_points, weekly_points, monthly_points,
	experience, level, streak_days, last_activity_date, version, created_at, updated_at`

// Get returns the user's record.
func (r *ProgressRepository) Get(ctx context.Context, userID string) (*progress.Record, error) {
	row := r.s.q(ctx).QueryRowContext(ctx, `SELECT `+progressColumns+` FROM progress_records WHERE user_id = ?`, userID)
	return scanRecord(row)
}

// GetForUpdate is Get. SQLite serializes writers; the version check in Save
// catches the rest.
func (r *ProgressRepository) GetForUpdate(ctx context.Context, userID string) (*progress.Record, error) {
	return r.Get(ctx, userID)
}

// Save inserts a new record or updates the stored one when versions match.
func (r *ProgressRepository) Save(ctx context.Context, rec *progress.Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	var (
		res sql.Result
		err error
	)
	if rec.Version == 0 {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = rec.UpdatedAt
		}
		res, err = r.s.q(ctx).ExecContext(ctx, `
			INSERT INTO progress_records (`+progressColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT (user_id) DO NOTHING`,
			rec.UserID, rec.TotalPoints, rec.DailyPoints, rec.WeeklyPoints, rec.MonthlyPoints,
			rec.Experience, rec.Level.Int(), rec.StreakDays, formatDate(rec.LastActivityDate),
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
		)
	} else {
		res, err = r.s.q(ctx).ExecContext(ctx, `
			UPDATE progress_records SET
				total_points = ?, daily_points = ?, weekly_points = ?, monthly_points = ?,
				experience = ?, level = ?, streak_days = ?, last_activity_date = ?,
				version = version + 1, updated_at = ?
			WHERE user_id = ? AND version = ?`,
			rec.TotalPoints, rec.DailyPoints, rec.WeeklyPoints, rec.MonthlyPoints,
			rec.Experience, rec.Level.Int(), rec.StreakDays, formatDate(rec.LastActivityDate),
			formatTime(rec.UpdatedAt), rec.UserID, rec.Version,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to save progress record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save progress record: %w", err)
	}
	if n == 0 {
		return shared.ErrVersionConflict
	}
	rec.Version++
	return nil
}

// ResetPeriod zeroes one periodic counter for every user that has a value.
func (r *ProgressRepository) ResetPeriod(ctx context.Context, period shared.Period) (int64, error) {
	var column string
	switch period {
	case shared.PeriodDaily:
		column = "daily_points"
	case shared.PeriodWeekly:
		column = "weekly_points"
	case shared.PeriodMonthly:
		column = "monthly_points"
	default:
		return 0, shared.ErrInvalidPeriod
	}

	query := fmt.Sprintf(`UPDATE progress_records SET %[1]s = 0, version = version + 1, updated_at = ? WHERE %[1]s <> 0`, column)
	res, err := r.s.q(ctx).ExecContext(ctx, query, formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to reset %s points: %w", period, err)
	}
	return res.RowsAffected()
}

// FindStaleStreaks returns users with a streak whose last activity is
// before yesterday, ordered by user id.
func (r *ProgressRepository) FindStaleStreaks(ctx context.Context, today time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	yesterday := formatDate(today.AddDate(0, 0, -1))

	rows, err := r.s.q(ctx).QueryContext(ctx, `
		SELECT user_id FROM progress_records
		WHERE streak_days > 0 AND last_activity_date < ?
		ORDER BY user_id LIMIT ?`, yesterday, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale streaks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of progress records.
func (r *ProgressRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.s.q(ctx).QueryRowContext(ctx, `SELECT count(*) FROM progress_records`).Scan(&n)
	return n, err
}

func scanRecord(row *sql.Row) (*progress.Record, error) {
	var (
		rec                  progress.Record
		level                int
		lastActivity         sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&rec.UserID, &rec.TotalPoints, &rec.DailyPoints, &rec.WeeklyPoints, &rec.MonthlyPoints,
		&rec.Experience, &level, &rec.StreakDays, &lastActivity, &rec.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to scan progress record: %w", err)
	}

	rec.Level = shared.Level(level)
	if rec.LastActivityDate, err = parseDate(lastActivity); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Actions
// ─────────────────────────────────────────────────────────────────────────────

// ActionRepository implements activity.Repository on SQLite.
type ActionRepository struct {
	s *Store
}

// Get returns an action by id.
func (r *ActionRepository) Get(ctx context.Context, id string) (*activity.Action, error) {
	var (
		a           activity.Action
		kind        string
		completed   int
		completedAt sql.NullString
		updatedAt   string
	)
	err := r.s.q(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, kind, title, points, completed, completed_at, updated_at
		FROM actions WHERE id = ?`, id,
	).Scan(&a.ID, &a.UserID, &kind, &a.Title, &a.Points, &completed, &completedAt, &updatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, shared.ErrActionNotFound
		}
		return nil, fmt.Errorf("failed to get action: %w", err)
	}

	a.Kind = activity.Kind(kind)
	a.Completed = completed != 0
	if a.CompletedAt, err = parseDate(completedAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Save upserts the action.
func (r *ActionRepository) Save(ctx context.Context, a *activity.Action) error {
	if a.ID == "" {
		return shared.ErrInvalidActionID
	}
	_, err := r.s.q(ctx).ExecContext(ctx, `
		INSERT INTO actions (id, user_id, kind, title, points, completed, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			kind = excluded.kind,
			title = excluded.title,
			points = excluded.points,
			completed = excluded.completed,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		a.ID, a.UserID, string(a.Kind), a.Title, a.Points, boolInt(a.Completed),
		formatDate(a.CompletedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save action: %w", err)
	}
	return nil
}

// SumCompletedPoints sums points of the user's actions completed in window.
// ISO dates compare correctly as text.
func (r *ActionRepository) SumCompletedPoints(ctx context.Context, userID string, window shared.DateRange) (int, error) {
	var sum int
	err := r.s.q(ctx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM actions
		WHERE user_id = ? AND completed = 1 AND completed_at BETWEEN ? AND ?`,
		userID, formatDate(window.From), formatDate(window.To),
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum completed points: %w", err)
	}
	return sum, nil
}

// CountTasks counts the user's task actions.
func (r *ActionRepository) CountTasks(ctx context.Context, userID string) (activity.Counts, error) {
	var c activity.Counts
	err := r.s.q(ctx).QueryRowContext(ctx, `
		SELECT count(*), COALESCE(SUM(completed), 0)
		FROM actions WHERE user_id = ? AND kind = 'task'`, userID,
	).Scan(&c.Total, &c.Completed)
	if err != nil {
		return activity.Counts{}, fmt.Errorf("failed to count tasks: %w", err)
	}
	return c, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
