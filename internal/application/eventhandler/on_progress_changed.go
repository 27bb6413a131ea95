// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESS CHANGED HANDLER
// Сбрасывает кэш снимков прогресса после изменения записи.
//
// События пользователя сбрасывают его снимок; сброс периодических очков
// затрагивает всех и очищает кэш целиком.
// ═══════════════════════════════════════════════════════════════════════════

// ProgressEventTypes - события, после которых снимок устаревает.
var ProgressEventTypes = []shared.EventType{
	shared.EventPointsAwarded,
	shared.EventPointsRemoved,
	shared.EventStreakReset,
	shared.EventPeriodPointsReset,
}

// OnProgressChangedHandler инвалидирует кэш снимков.
type OnProgressChangedHandler struct {
	cache   query.SnapshotCache
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnProgressChangedHandler создаёт обработчик.
func NewOnProgressChangedHandler(cache query.SnapshotCache, logger *slog.Logger) *OnProgressChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnProgressChangedHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_progress_changed"),
		timeout: 2 * time.Second,
	}
}

// Handle обрабатывает событие.
// Реализует интерфейс shared.EventHandler.
func (h *OnProgressChangedHandler) Handle(event shared.Event) error {
	if h.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if event.EventType() == shared.EventPeriodPointsReset {
		if err := h.cache.InvalidateAll(ctx); err != nil {
			h.logger.Error("failed to flush snapshot cache", "error", err)
			return err
		}
		return nil
	}

	userID := event.AggregateID()
	if userID == "" {
		return nil
	}
	if err := h.cache.Invalidate(ctx, userID); err != nil {
		h.logger.Error("failed to invalidate snapshot",
			logger.UserID(userID),
			"event_type", event.EventType(),
			"error", err,
		)
		return err
	}
	return nil
}

// Register подписывает обработчик на события прогресса.
func (h *OnProgressChangedHandler) Register(sub shared.EventSubscriber) error {
	for _, t := range ProgressEventTypes {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
