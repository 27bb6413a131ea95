package goal

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции с целями.
type Repository interface {
	// Create сохраняет новую цель и присваивает ей ID.
	Create(ctx context.Context, g *Goal) error

	// GetByID возвращает цель по ID.
	// Возвращает ErrGoalNotFound, если цели нет.
	GetByID(ctx context.Context, id int64) (*Goal, error)

	// ListActive возвращает активные цели пользователя на дату today
	// (не достигнуты, StartDate <= today <= EndDate), отсортированные по ID.
	ListActive(ctx context.Context, userID string, today time.Time) ([]*Goal, error)

	// ListByUser возвращает все цели пользователя, отсортированные по ID.
	ListByUser(ctx context.Context, userID string) ([]*Goal, error)

	// MarkAchieved атомарно переводит цель в "достигнута", только если она
	// ещё не достигнута. Возвращает ErrGoalAlreadyAchieved иначе.
	MarkAchieved(ctx context.Context, id int64, at time.Time) error

	// CountByUser возвращает количество активных и достигнутых целей.
	CountByUser(ctx context.Context, userID string, today time.Time) (Counts, error)
}

// Counts - статистика целей пользователя.
type Counts struct {
	Active   int
	Achieved int
}

// AchievementRepository определяет операции с достижениями.
type AchievementRepository interface {
	// Create сохраняет достижение и присваивает ему ID.
	// Возвращает ErrAchievementExists, если для цели достижение уже есть.
	Create(ctx context.Context, a *Achievement) error

	// GetByGoal возвращает достижение цели.
	// Возвращает ErrNotFound, если его нет.
	GetByGoal(ctx context.Context, goalID int64) (*Achievement, error)

	// ListByUser возвращает достижения пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, page shared.Pagination) ([]*Achievement, error)

	// CountByUser возвращает количество достижений пользователя.
	CountByUser(ctx context.Context, userID string) (int, error)
}
