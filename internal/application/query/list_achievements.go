package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ListAchievementsQuery - запрос достижений пользователя, новые первыми.
type ListAchievementsQuery struct {
	UserID   string
	Page     int
	PageSize int
}

// AchievementDTO - достижение.
type AchievementDTO struct {
	ID           int64     `json:"id"`
	GoalID       *int64    `json:"goal_id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	BadgeIcon    string    `json:"badge_icon,omitempty"`
	BadgeColor   string    `json:"badge_color"`
	PointsEarned int       `json:"points_earned"`
	CreatedAt    time.Time `json:"created_at"`
}

// AchievementListDTO - страница достижений.
type AchievementListDTO struct {
	Items []AchievementDTO `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
}

// ListAchievementsHandler обрабатывает запрос достижений.
type ListAchievementsHandler struct {
	achievementRepo goal.AchievementRepository
}

// NewListAchievementsHandler создаёт обработчик.
func NewListAchievementsHandler(achievementRepo goal.AchievementRepository) *ListAchievementsHandler {
	return &ListAchievementsHandler{achievementRepo: achievementRepo}
}

// Handle выполняет запрос.
func (h *ListAchievementsHandler) Handle(ctx context.Context, q ListAchievementsQuery) (*AchievementListDTO, error) {
	userID := strings.TrimSpace(q.UserID)
	if userID == "" {
		return nil, errors.New("list_achievements: user_id is required")
	}
	page := shared.NewPagination(q.Page, q.PageSize)

	items, err := h.achievementRepo.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("list_achievements: %w", err)
	}
	total, err := h.achievementRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list_achievements: count: %w", err)
	}

	out := &AchievementListDTO{
		Items: make([]AchievementDTO, 0, len(items)),
		Total: total,
		Page:  page.Page,
	}
	for _, a := range items {
		out.Items = append(out.Items, AchievementDTO{
			ID:           a.ID,
			GoalID:       a.GoalID,
			Title:        a.Title,
			Description:  a.Description,
			BadgeIcon:    a.BadgeIcon,
			BadgeColor:   a.BadgeColor,
			PointsEarned: a.PointsEarned,
			CreatedAt:    a.CreatedAt,
		})
	}
	return out, nil
}
