package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// Сводная статистика для дашборда: задачи, очки, уровень, цели и достижения.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserStatsQuery содержит параметры запроса.
type GetUserStatsQuery struct {
	// UserID - пользователь.
	UserID string

	// Today - дата для подсчёта активных целей (пустая = сегодня).
	Today time.Time
}

// UserStatsDTO - сводная статистика пользователя.
type UserStatsDTO struct {
	UserID            string `json:"user_id"`
	TotalTasks        int    `json:"total_tasks"`
	CompletedTasks    int    `json:"completed_tasks"`
	PendingTasks      int    `json:"pending_tasks"`
	TotalPoints       int    `json:"total_points"`
	DailyPoints       int    `json:"daily_points"`
	WeeklyPoints      int    `json:"weekly_points"`
	MonthlyPoints     int    `json:"monthly_points"`
	Level             int    `json:"level"`
	Experience        int    `json:"experience"`
	StreakDays        int    `json:"streak_days"`
	// StreakDaysLeft - 2: активен сегодня, 1: нужно отметиться сегодня, 0: серии нет.
	StreakDaysLeft    int    `json:"streak_days_left"`
	ActiveGoals       int    `json:"active_goals"`
	AchievedGoals     int    `json:"achieved_goals"`
	TotalAchievements int    `json:"total_achievements"`
}

// GetUserStatsHandler обрабатывает запрос статистики.
type GetUserStatsHandler struct {
	progressRepo    progress.Repository
	actionRepo      activity.Repository
	goalRepo        goal.Repository
	achievementRepo goal.AchievementRepository
	clock           timeutil.Clock
}

// NewGetUserStatsHandler создаёт обработчик.
func NewGetUserStatsHandler(
	progressRepo progress.Repository,
	actionRepo activity.Repository,
	goalRepo goal.Repository,
	achievementRepo goal.AchievementRepository,
	clock timeutil.Clock,
) *GetUserStatsHandler {
	return &GetUserStatsHandler{
		progressRepo:    progressRepo,
		actionRepo:      actionRepo,
		goalRepo:        goalRepo,
		achievementRepo: achievementRepo,
		clock:           clock,
	}
}

// Handle выполняет запрос.
func (h *GetUserStatsHandler) Handle(ctx context.Context, q GetUserStatsQuery) (*UserStatsDTO, error) {
	userID := strings.TrimSpace(q.UserID)
	if userID == "" {
		return nil, errors.New("get_user_stats: user_id is required")
	}
	today := q.Today
	if today.IsZero() {
		today = timeutil.Today(h.clock)
	}
	today = timeutil.DateOf(today)

	record, err := h.progressRepo.Get(ctx, userID)
	switch {
	case shared.IsNotFound(err):
		record = progress.NewRecord(userID)
	case err != nil:
		return nil, fmt.Errorf("get_user_stats: progress: %w", err)
	}

	tasks, err := h.actionRepo.CountTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_user_stats: tasks: %w", err)
	}
	goals, err := h.goalRepo.CountByUser(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("get_user_stats: goals: %w", err)
	}
	achievements, err := h.achievementRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_user_stats: achievements: %w", err)
	}

	return &UserStatsDTO{
		UserID:            userID,
		TotalTasks:        tasks.Total,
		CompletedTasks:    tasks.Completed,
		PendingTasks:      tasks.Pending(),
		TotalPoints:       record.TotalPoints,
		DailyPoints:       record.DailyPoints,
		WeeklyPoints:      record.WeeklyPoints,
		MonthlyPoints:     record.MonthlyPoints,
		Level:             record.Level.Int(),
		Experience:        record.Experience,
		StreakDays:        record.StreakDays,
		StreakDaysLeft:    progress.DaysUntilStreakBreaks(record.StreakDays, record.LastActivityDate, today),
		ActiveGoals:       goals.Active,
		AchievedGoals:     goals.Achieved,
		TotalAchievements: achievements,
	}, nil
}
