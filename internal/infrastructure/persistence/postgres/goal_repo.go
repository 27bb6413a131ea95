package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Ensure interfaces are met.
var _ goal.Repository = (*GoalRepository)(nil)
var _ goal.AchievementRepository = (*AchievementRepository)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const goalColumns = `
	id, user_id, title, description, target_points, start_date, end_date,
	reward_type, reward_name, reward_icon, reward_color,
	achieved, achieved_at, created_at, updated_at
`

// GoalRepository implements goal.Repository for PostgreSQL.
type GoalRepository struct {
	conn *Connection
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection) *GoalRepository {
	return &GoalRepository{conn: conn}
}

// Create inserts the goal and assigns its ID.
func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	query := `
		INSERT INTO goals (
			user_id, title, description, target_points, start_date, end_date,
			reward_type, reward_name, reward_icon, reward_color,
			achieved, achieved_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	err := r.conn.q(ctx).QueryRow(ctx, query,
		g.UserID,
		g.Title,
		g.Description,
		g.TargetPoints,
		g.StartDate,
		g.EndDate,
		string(g.Reward.Type),
		g.Reward.Name,
		g.Reward.Icon,
		g.Reward.Color,
		g.Achieved,
		g.AchievedAt,
		g.CreatedAt,
		g.UpdatedAt,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// GetByID returns a goal.
func (r *GoalRepository) GetByID(ctx context.Context, id int64) (*goal.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1`
	g, err := scanGoal(r.conn.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return g, nil
}

// ListActive returns the user's unachieved goals whose window contains today.
func (r *GoalRepository) ListActive(ctx context.Context, userID string, today time.Time) ([]*goal.Goal, error) {
	query := `SELECT ` + goalColumns + `
		FROM goals
		WHERE user_id = $1 AND NOT achieved AND start_date <= $2 AND end_date >= $2
		ORDER BY id
	`
	return r.list(ctx, query, userID, today)
}

// ListByUser returns all of the user's goals.
func (r *GoalRepository) ListByUser(ctx context.Context, userID string) ([]*goal.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = $1 ORDER BY id`
	return r.list(ctx, query, userID)
}

// MarkAchieved flips the achieved flag once. The conditional update makes
// the transition atomic across processes.
func (r *GoalRepository) MarkAchieved(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE goals SET achieved = TRUE, achieved_at = $1, updated_at = $1
		WHERE id = $2 AND NOT achieved
	`
	tag, err := r.conn.q(ctx).Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark goal achieved: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.conn.q(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM goals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check goal: %w", err)
	}
	if !exists {
		return shared.ErrGoalNotFound
	}
	return shared.ErrGoalAlreadyAchieved
}

// CountByUser counts active and achieved goals.
func (r *GoalRepository) CountByUser(ctx context.Context, userID string, today time.Time) (goal.Counts, error) {
	query := `
		SELECT
			count(*) FILTER (WHERE NOT achieved AND start_date <= $2 AND end_date >= $2),
			count(*) FILTER (WHERE achieved)
		FROM goals WHERE user_id = $1
	`
	var c goal.Counts
	if err := r.conn.q(ctx).QueryRow(ctx, query, userID, today).Scan(&c.Active, &c.Achieved); err != nil {
		return goal.Counts{}, fmt.Errorf("failed to count goals: %w", err)
	}
	return c, nil
}

func (r *GoalRepository) list(ctx context.Context, query string, args ...any) ([]*goal.Goal, error) {
	rows, err := r.conn.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []*goal.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func scanGoal(row pgx.Row) (*goal.Goal, error) {
	var (
		g          goal.Goal
		rewardType string
	)
	err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Title,
		&g.Description,
		&g.TargetPoints,
		&g.StartDate,
		&g.EndDate,
		&rewardType,
		&g.Reward.Name,
		&g.Reward.Icon,
		&g.Reward.Color,
		&g.Achieved,
		&g.AchievedAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.Reward.Type = goal.RewardType(rewardType)
	g.StartDate = asDate(g.StartDate)
	g.EndDate = asDate(g.EndDate)
	return &g, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const achievementColumns = `
	id, user_id, goal_id, title, description, badge_icon, badge_color, points_earned, created_at
`

// AchievementRepository implements goal.AchievementRepository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// Create inserts the achievement. The unique goal_id column keeps one
// achievement per goal.
func (r *AchievementRepository) Create(ctx context.Context, a *goal.Achievement) error {
	query := `
		INSERT INTO achievements (
			user_id, goal_id, title, description, badge_icon, badge_color, points_earned, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.conn.q(ctx).QueryRow(ctx, query,
		a.UserID,
		a.GoalID,
		a.Title,
		a.Description,
		a.BadgeIcon,
		a.BadgeColor,
		a.PointsEarned,
		a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAchievementExists
		}
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

// GetByGoal returns the achievement created for the goal.
func (r *AchievementRepository) GetByGoal(ctx context.Context, goalID int64) (*goal.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE goal_id = $1`
	a, err := scanAchievement(r.conn.q(ctx).QueryRow(ctx, query, goalID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("goal", "FindAchievement", shared.ErrNotFound, "achievement not found", nil)
		}
		return nil, fmt.Errorf("failed to get achievement: %w", err)
	}
	return a, nil
}

// ListByUser returns the user's achievements, newest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string, page shared.Pagination) ([]*goal.Achievement, error) {
	query := `SELECT ` + achievementColumns + `
		FROM achievements
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.conn.q(ctx).Query(ctx, query, userID, page.Limit(), page.Offset())
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
	err := r.conn.q(ctx).QueryRow(ctx, `SELECT count(*) FROM achievements WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count achievements: %w", err)
	}
	return n, nil
}

func scanAchievement(row pgx.Row) (*goal.Achievement, error) {
	var a goal.Achievement
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.GoalID,
		&a.Title,
		&a.Description,
		&a.BadgeIcon,
		&a.BadgeColor,
		&a.PointsEarned,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
