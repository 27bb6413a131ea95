package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Ensure interfaces are met.
var _ progress.Repository = (*ProgressRepository)(nil)
var _ activity.Repository = (*ActionRepository)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const progressColumns = `
	user_id, total_points, daily_points, weekly_points, monthly_points,
	experience, level, streak_days, last_activity_date, version, created_at, updated_at
`

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Single Record
// ─────────────────────────────────────────────────────────────────────────────

// Get returns the user's record.
func (r *ProgressRepository) Get(ctx context.Context, userID string) (*progress.Record, error) {
	query := `SELECT ` + progressColumns + ` FROM progress_records WHERE user_id = $1`
	return r.scanRecord(r.conn.q(ctx).QueryRow(ctx, query, userID))
}

// GetForUpdate returns the user's record and locks its row until the
// surrounding transaction ends.
func (r *ProgressRepository) GetForUpdate(ctx context.Context, userID string) (*progress.Record, error) {
	query := `SELECT ` + progressColumns + ` FROM progress_records WHERE user_id = $1 FOR UPDATE`
	return r.scanRecord(r.conn.q(ctx).QueryRow(ctx, query, userID))
}

// Save inserts a new record (Version 0) or updates the stored one when its
// version still matches.
func (r *ProgressRepository) Save(ctx context.Context, rec *progress.Record) error {
	now := time.Now().UTC()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	if rec.Version == 0 {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = rec.UpdatedAt
		}
		query := `
			INSERT INTO progress_records (
				user_id, total_points, daily_points, weekly_points, monthly_points,
				experience, level, streak_days, last_activity_date, version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
			ON CONFLICT (user_id) DO NOTHING
		`
		tag, err := r.conn.q(ctx).Exec(ctx, query,
			rec.UserID,
			rec.TotalPoints,
			rec.DailyPoints,
			rec.WeeklyPoints,
			rec.MonthlyPoints,
			rec.Experience,
			rec.Level.Int(),
			rec.StreakDays,
			nullDate(rec.LastActivityDate),
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		if err != nil {
			return r.saveError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrVersionConflict
		}
		rec.Version = 1
		return nil
	}

	query := `
		UPDATE progress_records SET
			total_points = $1,
			daily_points = $2,
			weekly_points = $3,
			monthly_points = $4,
			experience = $5,
			level = $6,
			streak_days = $7,
			last_activity_date = $8,
			version = version + 1,
			updated_at = $9
		WHERE user_id = $10 AND version = $11
	`
	tag, err := r.conn.q(ctx).Exec(ctx, query,
		rec.TotalPoints,
		rec.DailyPoints,
		rec.WeeklyPoints,
		rec.MonthlyPoints,
		rec.Experience,
		rec.Level.Int(),
		rec.StreakDays,
		nullDate(rec.LastActivityDate),
		rec.UpdatedAt,
		rec.UserID,
		rec.Version,
	)
	if err != nil {
		return r.saveError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrVersionConflict
	}
	rec.Version++
	return nil
}

func (r *ProgressRepository) saveError(err error) error {
	if IsSerializationFailure(err) {
		return shared.WrapError("progress", "Save", shared.ErrOptimisticLock, "serialization failure", err)
	}
	return fmt.Errorf("failed to save progress record: %w", err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// ResetPeriod zeroes one periodic counter for every user that has a non-zero
// value and bumps their versions, so in-flight optimistic writers retry.
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

	query := fmt.Sprintf(`
		UPDATE progress_records
		SET %[1]s = 0, version = version + 1, updated_at = NOW()
		WHERE %[1]s <> 0
	`, column)

	tag, err := r.conn.q(ctx).Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reset %s points: %w", period, err)
	}
	return tag.RowsAffected(), nil
}

// FindStaleStreaks returns users with a streak whose last activity is
// before yesterday, ordered by user id.
func (r *ProgressRepository) FindStaleStreaks(ctx context.Context, today time.Time, limit int) ([]string, error) {
	yesterday := today.AddDate(0, 0, -1)
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT user_id FROM progress_records
		WHERE streak_days > 0 AND last_activity_date < $1
		ORDER BY user_id
		LIMIT $2
	`
	rows, err := r.conn.q(ctx).Query(ctx, query, yesterday, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale streaks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of progress records.
func (r *ProgressRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.q(ctx).QueryRow(ctx, `SELECT count(*) FROM progress_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count progress records: %w", err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *ProgressRepository) scanRecord(row pgx.Row) (*progress.Record, error) {
	var (
		rec          progress.Record
		level        int
		lastActivity *time.Time
	)
	err := row.Scan(
		&rec.UserID,
		&rec.TotalPoints,
		&rec.DailyPoints,
		&rec.WeeklyPoints,
		&rec.MonthlyPoints,
		&rec.Experience,
		&level,
		&rec.StreakDays,
		&lastActivity,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to scan progress record: %w", err)
	}

	rec.Level = shared.Level(level)
	if lastActivity != nil {
		rec.LastActivityDate = asDate(*lastActivity)
	}
	return &rec, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ActionRepository implements activity.Repository for PostgreSQL.
type ActionRepository struct {
	conn *Connection
}

// NewActionRepository creates a new ActionRepository.
func NewActionRepository(conn *Connection) *ActionRepository {
	return &ActionRepository{conn: conn}
}

// Get returns an action by id.
func (r *ActionRepository) Get(ctx context.Context, id string) (*activity.Action, error) {
	query := `
		SELECT id, user_id, kind, title, points, completed, completed_at, updated_at
		FROM actions WHERE id = $1
	`
	var (
		a           activity.Action
		kind        string
		completedAt *time.Time
	)
	err := r.conn.q(ctx).QueryRow(ctx, query, id).Scan(
		&a.ID, &a.UserID, &kind, &a.Title, &a.Points, &a.Completed, &completedAt, &a.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrActionNotFound
		}
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	a.Kind = activity.Kind(kind)
	if completedAt != nil {
		a.CompletedAt = asDate(*completedAt)
	}
	return &a, nil
}

// Save upserts the action.
func (r *ActionRepository) Save(ctx context.Context, a *activity.Action) error {
	if a.ID == "" {
		return shared.ErrInvalidActionID
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO actions (id, user_id, kind, title, points, completed, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			kind = EXCLUDED.kind,
			title = EXCLUDED.title,
			points = EXCLUDED.points,
			completed = EXCLUDED.completed,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.conn.q(ctx).Exec(ctx, query,
		a.ID, a.UserID, string(a.Kind), a.Title, a.Points, a.Completed, nullDate(a.CompletedAt), a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save action: %w", err)
	}
	return nil
}

// SumCompletedPoints sums points of the user's actions completed inside the
// window, bounds included.
func (r *ActionRepository) SumCompletedPoints(ctx context.Context, userID string, window shared.DateRange) (int, error) {
	query := `
		SELECT COALESCE(SUM(points), 0) FROM actions
		WHERE user_id = $1 AND completed AND completed_at BETWEEN $2 AND $3
	`
	var sum int
	if err := r.conn.q(ctx).QueryRow(ctx, query, userID, window.From, window.To).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum completed points: %w", err)
	}
	return sum, nil
}

// CountTasks counts the user's task actions.
func (r *ActionRepository) CountTasks(ctx context.Context, userID string) (activity.Counts, error) {
	query := `
		SELECT count(*), count(*) FILTER (WHERE completed)
		FROM actions WHERE user_id = $1 AND kind = 'task'
	`
	var c activity.Counts
	if err := r.conn.q(ctx).QueryRow(ctx, query, userID).Scan(&c.Total, &c.Completed); err != nil {
		return activity.Counts{}, fmt.Errorf("failed to count tasks: %w", err)
	}
	return c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Date Helpers
// ─────────────────────────────────────────────────────────────────────────────

// nullDate maps the zero time to SQL NULL.
func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// asDate normalizes a scanned DATE to midnight UTC.
func asDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
