package goal

import (
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD (Награда за цель)
// ══════════════════════════════════════════════════════════════════════════════

// RewardType - тип награды.
type RewardType string

const (
	// RewardBadge - значок (по умолчанию).
	RewardBadge RewardType = "badge"
	// RewardTitle - звание.
	RewardTitle RewardType = "title"
	// RewardAchievement - достижение.
	RewardAchievement RewardType = "achievement"
)

// DefaultRewardColor - цвет награды по умолчанию.
const DefaultRewardColor = "#FFD700"

// BonusRate - доля target_points, начисляемая бонусом при достижении цели.
const BonusRate = 0.2

// IsValid проверяет тип награды.
func (t RewardType) IsValid() bool {
	switch t {
	case RewardBadge, RewardTitle, RewardAchievement:
		return true
	}
	return false
}

// Reward - метаданные награды.
type Reward struct {
	// Type - тип награды.
	Type RewardType

	// Name - название награды.
	Name string

	// Icon - иконка награды.
	Icon string

	// Color - цвет награды (#RRGGBB).
	Color string
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL
// ══════════════════════════════════════════════════════════════════════════════

// Goal - цель пользователя: набрать TargetPoints очков за окно
// [StartDate, EndDate]. Переход Achieved false→true происходит один раз.
type Goal struct {
	// ID - идентификатор (автоинкремент хранилища).
	ID int64

	// UserID - владелец.
	UserID string

	// Title - название цели.
	Title string

	// Description - описание.
	Description string

	// TargetPoints - сколько очков нужно набрать (> 0).
	TargetPoints int

	// StartDate - начало окна (включительно).
	StartDate time.Time

	// EndDate - конец окна (включительно).
	EndDate time.Time

	// Reward - награда.
	Reward Reward

	// Achieved - достигнута ли цель.
	Achieved bool

	// AchievedAt - момент достижения; задан тогда и только тогда, когда Achieved.
	AchievedAt *time.Time

	// CreatedAt - время создания.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewGoalParams содержит параметры для создания цели.
type NewGoalParams struct {
	UserID       string
	Title        string
	Description  string
	TargetPoints int
	StartDate    time.Time
	EndDate      time.Time
	RewardType   RewardType
	RewardName   string
	RewardIcon   string
	RewardColor  string
}

// NewGoal создаёт цель с валидацией и значениями по умолчанию.
func NewGoal(params NewGoalParams, now time.Time) (*Goal, error) {
	if !shared.UserID(params.UserID).IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, shared.ErrInvalidGoalTitle
	}
	if params.TargetPoints <= 0 {
		return nil, shared.ErrInvalidGoalTarget
	}
	if params.StartDate.IsZero() || params.EndDate.IsZero() || params.StartDate.After(params.EndDate) {
		return nil, shared.ErrInvalidGoalWindow
	}

	rewardType := params.RewardType
	if rewardType == "" {
		rewardType = RewardBadge
	}
	if !rewardType.IsValid() {
		return nil, shared.ErrInvalidRewardType
	}

	color := params.RewardColor
	if color == "" {
		color = DefaultRewardColor
	}

	return &Goal{
		UserID:       strings.TrimSpace(params.UserID),
		Title:        strings.TrimSpace(params.Title),
		Description:  params.Description,
		TargetPoints: params.TargetPoints,
		StartDate:    params.StartDate,
		EndDate:      params.EndDate,
		Reward: Reward{
			Type:  rewardType,
			Name:  params.RewardName,
			Icon:  params.RewardIcon,
			Color: color,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Window возвращает окно цели.
func (g *Goal) Window() shared.DateRange {
	return shared.DateRange{From: g.StartDate, To: g.EndDate}
}

// IsActive проверяет, что цель не достигнута и today внутри окна.
func (g *Goal) IsActive(today time.Time) bool {
	return !g.Achieved && g.Window().Contains(today)
}

// IsExpired проверяет, что окно цели закончилось.
func (g *Goal) IsExpired(today time.Time) bool {
	return today.After(g.EndDate)
}

// DaysRemaining возвращает количество дней от today до EndDate
// (отрицательное, если цель просрочена).
func (g *Goal) DaysRemaining(today time.Time) int {
	return int(g.EndDate.Sub(today).Hours() / 24)
}

// BonusPoints возвращает бонус за достижение: round(target * 0.2).
func (g *Goal) BonusPoints() int {
	return shared.RoundHalfUp(float64(g.TargetPoints) * BonusRate)
}

// MarkAchieved переводит цель в состояние "достигнута".
// Возвращает ErrGoalAlreadyAchieved при повторном вызове.
func (g *Goal) MarkAchieved(at time.Time) error {
	if g.Achieved {
		return shared.ErrGoalAlreadyAchieved
	}
	g.Achieved = true
	g.AchievedAt = &at
	g.UpdatedAt = at
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Progress - прогресс цели.
type Progress struct {
	// Current - min(target, очки в окне).
	Current int

	// Percentage - round(100 * Current / target).
	Percentage int

	// Achievable - Current >= target.
	Achievable bool
}

// Evaluate вычисляет прогресс цели по сумме очков выполненных действий в окне.
func (g *Goal) Evaluate(pointsInWindow int) Progress {
	current := pointsInWindow
	if current > g.TargetPoints {
		current = g.TargetPoints
	}
	if current < 0 {
		current = 0
	}
	return Progress{
		Current:    current,
		Percentage: shared.Percent(current, g.TargetPoints),
		Achievable: g.TargetPoints > 0 && current >= g.TargetPoints,
	}
}
