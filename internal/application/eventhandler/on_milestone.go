package eventhandler

import (
	"log/slog"
	"sync/atomic"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MILESTONE HANDLER
// Журналирует вехи пользователя: разблокировку цели, новый уровень и
// потерю серии. Ведёт счётчики для периодического отчёта воркера.
// ═══════════════════════════════════════════════════════════════════════════

// MilestoneStats - счётчики обработанных вех.
type MilestoneStats struct {
	GoalsAchieved int64
	LevelUps      int64
	StreaksLost   int64
}

// OnMilestoneHandler обрабатывает события вех.
type OnMilestoneHandler struct {
	logger *slog.Logger

	goalsAchieved atomic.Int64
	levelUps      atomic.Int64
	streaksLost   atomic.Int64
}

// NewOnMilestoneHandler создаёт обработчик.
func NewOnMilestoneHandler(logger *slog.Logger) *OnMilestoneHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnMilestoneHandler{logger: logger.With("handler", "on_milestone")}
}

// Handle обрабатывает событие.
// Реализует интерфейс shared.EventHandler.
func (h *OnMilestoneHandler) Handle(event shared.Event) error {
	switch e := event.(type) {
	case shared.GoalAchievedEvent:
		h.goalsAchieved.Add(1)
		h.logger.Info("goal achieved",
			logger.UserID(e.UserID),
			logger.GoalID(e.GoalID),
			"achievement_id", e.AchievementID,
			"title", e.Title,
			"bonus_points", e.BonusPoints,
			"reward_type", e.RewardType,
		)
	case shared.LevelUpEvent:
		h.levelUps.Add(1)
		h.logger.Info("level up",
			logger.UserID(e.UserID),
			"level", e.NewLevel,
			"bonus_points", e.Bonus,
		)
	case shared.StreakResetEvent:
		h.streaksLost.Add(1)
		h.logger.Info("streak lost",
			logger.UserID(e.UserID),
			"lost_streak", e.LostStreak,
		)
	default:
		h.logger.Debug("milestone event", "event_type", event.EventType(), "aggregate_id", event.AggregateID())
	}
	return nil
}

// Register подписывает обработчик на события вех.
func (h *OnMilestoneHandler) Register(sub shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventGoalAchieved,
		shared.EventLevelUp,
		shared.EventStreakReset,
	} {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Stats возвращает текущие значения счётчиков.
func (h *OnMilestoneHandler) Stats() MilestoneStats {
	return MilestoneStats{
		GoalsAchieved: h.goalsAchieved.Load(),
		LevelUps:      h.levelUps.Load(),
		StreaksLost:   h.streaksLost.Load(),
	}
}
