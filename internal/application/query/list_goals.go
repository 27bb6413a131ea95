package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/activity"
	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST GOALS QUERY
// Цели пользователя с текущим прогрессом: очки в окне цели (не больше
// target_points), процент и оставшиеся дни.
// ══════════════════════════════════════════════════════════════════════════════

// ListGoalsQuery содержит параметры запроса целей.
type ListGoalsQuery struct {
	// UserID - пользователь.
	UserID string

	// Today - дата оценки (пустая = сегодня).
	Today time.Time

	// IncludeInactive - включить достигнутые и вне окна.
	IncludeInactive bool
}

// Validate проверяет корректность параметров.
func (q ListGoalsQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// RewardDTO - метаданные награды.
type RewardDTO struct {
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color"`
}

// GoalProgressDTO - цель с прогрессом.
type GoalProgressDTO struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	TargetPoints       int        `json:"target_points"`
	CurrentProgress    int        `json:"current_progress"`
	ProgressPercentage int        `json:"progress_percentage"`
	DaysRemaining      int        `json:"days_remaining"`
	StartDate          string     `json:"start_date"`
	EndDate            string     `json:"end_date"`
	Achieved           bool       `json:"achieved"`
	AchievedAt         *time.Time `json:"achieved_at,omitempty"`
	Expired            bool       `json:"expired"`
	Reward             RewardDTO  `json:"reward"`
}

// ListGoalsHandler обрабатывает запрос целей.
type ListGoalsHandler struct {
	goalRepo   goal.Repository
	actionRepo activity.Repository
	clock      timeutil.Clock
}

// NewListGoalsHandler создаёт обработчик.
func NewListGoalsHandler(goalRepo goal.Repository, actionRepo activity.Repository, clock timeutil.Clock) *ListGoalsHandler {
	return &ListGoalsHandler{goalRepo: goalRepo, actionRepo: actionRepo, clock: clock}
}

// Handle выполняет запрос. Цели упорядочены по ID.
func (h *ListGoalsHandler) Handle(ctx context.Context, q ListGoalsQuery) ([]GoalProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("list_goals: validation failed: %w", err)
	}
	userID := strings.TrimSpace(q.UserID)

	today := q.Today
	if today.IsZero() {
		today = timeutil.Today(h.clock)
	}
	today = timeutil.DateOf(today)

	var (
		goals []*goal.Goal
		err   error
	)
	if q.IncludeInactive {
		goals, err = h.goalRepo.ListByUser(ctx, userID)
	} else {
		goals, err = h.goalRepo.ListActive(ctx, userID, today)
	}
	if err != nil {
		return nil, fmt.Errorf("list_goals: %w", err)
	}

	out := make([]GoalProgressDTO, 0, len(goals))
	for _, g := range goals {
		points, err := h.actionRepo.SumCompletedPoints(ctx, userID, g.Window())
		if err != nil {
			return nil, fmt.Errorf("list_goals: goal %d: %w", g.ID, err)
		}
		p := g.Evaluate(points)

		out = append(out, GoalProgressDTO{
			ID:                 g.ID,
			Title:              g.Title,
			Description:        g.Description,
			TargetPoints:       g.TargetPoints,
			CurrentProgress:    p.Current,
			ProgressPercentage: p.Percentage,
			DaysRemaining:      g.DaysRemaining(today),
			StartDate:          timeutil.FormatDate(g.StartDate),
			EndDate:            timeutil.FormatDate(g.EndDate),
			Achieved:           g.Achieved,
			AchievedAt:         g.AchievedAt,
			Expired:            g.IsExpired(today),
			Reward: RewardDTO{
				Type:  string(g.Reward.Type),
				Name:  g.Reward.Name,
				Icon:  g.Reward.Icon,
				Color: g.Reward.Color,
			},
		})
	}
	return out, nil
}
