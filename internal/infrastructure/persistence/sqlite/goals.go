package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Ensure interfaces are met.
var _ goal.Repository = (*GoalRepository)(nil)
var _ goal.AchievementRepository = (*AchievementRepository)(nil)

// GoalRepository implements goal.Repository on SQLite.
type GoalRepository struct {
	s *Store
}

const goalColumns = `id, user_id, title, description, target_points, start_date, end_date,
	reward_type, reward_name, reward_icon, reward_color, achieved, achieved_at, created_at, updated_at`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts the goal and assigns its ID.
func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	var achievedAt sql.NullString
	if g.AchievedAt != nil {
		achievedAt = sql.NullString{String: formatTime(*g.AchievedAt), Valid: true}
	}

	res, err := r.s.q(ctx).ExecContext(ctx, `
		INSERT INTO goals (user_id, title, description, target_points, start_date, end_date,
			reward_type, reward_name, reward_icon, reward_color, achieved, achieved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Title, g.Description, g.TargetPoints, formatDate(g.StartDate), formatDate(g.EndDate),
		string(g.Reward.Type), g.Reward.Name, g.Reward.Icon, g.Reward.Color,
		boolInt(g.Achieved), achievedAt, formatTime(g.CreatedAt), formatTime(g.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	g.ID, err = res.LastInsertId()
	return err
}

// GetByID returns a goal.
func (r *GoalRepository) GetByID(ctx context.Context, id int64) (*goal.Goal, error) {
	g, err := scanGoal(r.s.q(ctx).QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, shared.ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return g, nil
}

// ListActive returns the user's unachieved goals whose window contains today.
func (r *GoalRepository) ListActive(ctx context.Context, userID string, today time.Time) ([]*goal.Goal, error) {
	d := formatDate(today)
	return r.list(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE user_id = ? AND achieved = 0 AND start_date <= ? AND end_date >= ?
		ORDER BY id`, userID, d, d)
}

// ListByUser returns all of the user's goals.
func (r *GoalRepository) ListByUser(ctx context.Context, userID string) ([]*goal.Goal, error) {
	return r.list(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY id`, userID)
}

// MarkAchieved flips the achieved flag once.
func (r *GoalRepository) MarkAchieved(ctx context.Context, id int64, at time.Time) error {
	ts := formatTime(at)
	res, err := r.s.q(ctx).ExecContext(ctx, `
		UPDATE goals SET achieved = 1, achieved_at = ?, updated_at = ?
		WHERE id = ? AND achieved = 0`, ts, ts, id)
	if err != nil {
		return fmt.Errorf("failed to mark goal achieved: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return shared.ErrGoalAlreadyAchieved
}

// CountByUser counts active and achieved goals.
func (r *GoalRepository) CountByUser(ctx context.Context, userID string, today time.Time) (goal.Counts, error) {
	d := formatDate(today)
	var c goal.Counts
	err := r.s.q(ctx).QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN achieved = 0 AND start_date <= ? AND end_date >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(achieved), 0)
		FROM goals WHERE user_id = ?`, d, d, userID,
	).Scan(&c.Active, &c.Achieved)
	if err != nil {
		return goal.Counts{}, fmt.Errorf("failed to count goals: %w", err)
	}
	return c, nil
}

func (r *GoalRepository) list(ctx context.Context, query string, args ...any) ([]*goal.Goal, error) {
	rows, err := r.s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var out []*goal.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGoal(row scanner) (*goal.Goal, error) {
	var (
		g                    goal.Goal
		rewardType           string
		start, end           sql.NullString
		achieved             int
		achievedAt           sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&g.ID, &g.UserID, &g.Title, &g.Description, &g.TargetPoints, &start, &end,
		&rewardType, &g.Reward.Name, &g.Reward.Icon, &g.Reward.Color,
		&achieved, &achievedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Reward.Type = goal.RewardType(rewardType)
	g.Achieved = achieved != 0
	if g.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if g.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	if achievedAt.Valid {
		t, err := parseTime(achievedAt.String)
		if err != nil {
			return nil, err
		}
		g.AchievedAt = &t
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Achievements
// ─────────────────────────────────────────────────────────────────────────────

// AchievementRepository implements goal.AchievementRepository on SQLite.
type AchievementRepository struct {
	s *Store
}

const achievementColumns = `id, user_id, goal_id, title, description, badge_icon, badge_color, points_earned, created_at`

// Create inserts the achievement; goal_id is unique.
func (r *AchievementRepository) Create(ctx context.Context, a *goal.Achievement) error {
	res, err := r.s.q(ctx).ExecContext(ctx, `
		INSERT INTO achievements (user_id, goal_id, title, description, badge_icon, badge_color, points_earned, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.GoalID, a.Title, a.Description, a.BadgeIcon, a.BadgeColor, a.PointsEarned, formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAchievementExists
		}
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// GetByGoal returns the achievement created for the goal.
func (r *AchievementRepository) GetByGoal(ctx context.Context, goalID int64) (*goal.Achievement, error) {
	a, err := scanAchievement(r.s.q(ctx).QueryRowContext(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE goal_id = ?`, goalID))
	if err != nil {
		if isNoRows(err) {
			return nil, shared.WrapError("goal", "FindAchievement", shared.ErrNotFound, "achievement not found", nil)
		}
		return nil, fmt.Errorf("failed to get achievement: %w", err)
	}
	return a, nil
}

// ListByUser returns the user's achievements, newest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string, page shared.Pagination) ([]*goal.Achievement, error) {
	rows, err := r.s.q(ctx).QueryContext(ctx, `SELECT `+achievementColumns+` FROM achievements
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var out []*goal.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByUser counts the user's achievements.
func (r *AchievementRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.s.q(ctx).QueryRowContext(ctx, `SELECT count(*) FROM achievements WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func scanAchievement(row scanner) (*goal.Achievement, error) {
	var (
		a         goal.Achievement
		goalID    sql.NullInt64
		createdAt string
	)
	err := row.Scan(&a.ID, &a.UserID, &goalID, &a.Title, &a.Description, &a.BadgeIcon, &a.BadgeColor, &a.PointsEarned, &createdAt)
	if err != nil {
		return nil, err
	}
	if goalID.Valid {
		id := goalID.Int64
		a.GoalID = &id
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}
