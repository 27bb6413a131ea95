package goal

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS (Достижения)
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - неизменяемая запись о разблокировке цели.
// На одну достигнутую цель приходится ровно одно достижение.
type Achievement struct {
	// ID - идентификатор (автоинкремент хранилища).
	ID int64

	// UserID - владелец.
	UserID string

	// GoalID - цель, давшая достижение (nil для достижений без цели).
	GoalID *int64

	// Title - название (копируется из цели).
	Title string

	// Description - описание (копируется из цели).
	Description string

	// BadgeIcon - иконка значка (reward_icon цели).
	BadgeIcon string

	// BadgeColor - цвет значка (reward_color цели).
	BadgeColor string

	// PointsEarned - очки на момент разблокировки (= target_points цели).
	PointsEarned int

	// CreatedAt - время разблокировки.
	CreatedAt time.Time
}

// NewAchievementForGoal создаёт достижение для достигнутой цели.
func NewAchievementForGoal(g *Goal, at time.Time) *Achievement {
	goalID := g.ID
	return &Achievement{
		UserID:       g.UserID,
		GoalID:       &goalID,
		Title:        g.Title,
		Description:  g.Description,
		BadgeIcon:    g.Reward.Icon,
		BadgeColor:   g.Reward.Color,
		PointsEarned: g.TargetPoints,
		CreatedAt:    at,
	}
}
