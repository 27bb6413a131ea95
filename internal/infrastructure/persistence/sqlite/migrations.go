package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// migration is one numbered schema step.
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{1, "create_progress", `
		CREATE TABLE IF NOT EXISTS progress_records (
			user_id TEXT PRIMARY KEY,
			total_points INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
			daily_points INTEGER NOT NULL DEFAULT 0 CHECK (daily_points >= 0),
			weekly_points INTEGER NOT NULL DEFAULT 0 CHECK (weekly_points >= 0),
			monthly_points INTEGER NOT NULL DEFAULT 0 CHECK (monthly_points >= 0),
			experience INTEGER NOT NULL DEFAULT 0 CHECK (experience >= 0),
			level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
			streak_days INTEGER NOT NULL DEFAULT 0 CHECK (streak_days >= 0),
			last_activity_date TEXT,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'task' CHECK (kind IN ('task', 'habit')),
			title TEXT NOT NULL DEFAULT '',
			points INTEGER NOT NULL DEFAULT 10,
			completed INTEGER NOT NULL DEFAULT 0,
			completed_at TEXT,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_actions_user_completed ON actions(user_id, completed_at);
	`},
	{2, "create_goals", `
		CREATE TABLE IF NOT EXISTS goals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			target_points INTEGER NOT NULL CHECK (target_points > 0),
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			reward_type TEXT NOT NULL DEFAULT 'badge',
			reward_name TEXT NOT NULL DEFAULT '',
			reward_icon TEXT NOT NULL DEFAULT '',
			reward_color TEXT NOT NULL DEFAULT '#FFD700',
			achieved INTEGER NOT NULL DEFAULT 0,
			achieved_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			CHECK (start_date <= end_date)
		);
		CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id, id);

		CREATE TABLE IF NOT EXISTS achievements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			goal_id INTEGER UNIQUE REFERENCES goals(id) ON DELETE SET NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			badge_icon TEXT NOT NULL DEFAULT '',
			badge_color TEXT NOT NULL DEFAULT '#FFD700',
			points_earned INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id, created_at);
	`},
	{3, "create_habits", `
		CREATE TABLE IF NOT EXISTS habits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			frequency TEXT NOT NULL DEFAULT 'daily',
			target_count INTEGER NOT NULL DEFAULT 1 CHECK (target_count >= 1),
			color TEXT NOT NULL DEFAULT '#3B82F6',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS habit_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			habit_id INTEGER NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 1 CHECK (count >= 1),
			notes TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL,
			UNIQUE (habit_id, user_id, date)
		);
	`},
}

// SchemaVersion returns the latest schema version this build knows.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies pending migrations and returns how many were applied.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return 0, fmt.Errorf("failed to ensure schema_version table: %w", err)
	}

	current, err := s.currentVersion(ctx)
	if err != nil {
		return 0, err
	}
	if current > SchemaVersion() {
		return 0, fmt.Errorf("database schema version %d is newer than supported version %d", current, SchemaVersion())
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := s.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := s.q(ctx).ExecContext(ctx, m.sql); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
			if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
				return err
			}
			_, err := s.q(ctx).ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version)
			return err
		})
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (s *Store) currentVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return v, nil
}
