// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/progress"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS SNAPSHOT QUERY
// Снимок прогресса пользователя: очки, уровень, опыт и серия.
// Отсутствие записи - не ошибка: возвращается нулевой снимок уровня 1.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressSnapshotQuery содержит параметры запроса снимка.
type GetProgressSnapshotQuery struct {
	// UserID - пользователь.
	UserID string

	// SkipCache - читать напрямую из хранилища.
	SkipCache bool
}

// Validate проверяет корректность параметров.
func (q GetProgressSnapshotQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// ProgressSnapshotDTO - снимок прогресса пользователя.
type ProgressSnapshotDTO struct {
	UserID            string `json:"user_id"`
	TotalPoints       int    `json:"total_points"`
	DailyPoints       int    `json:"daily_points"`
	WeeklyPoints      int    `json:"weekly_points"`
	MonthlyPoints     int    `json:"monthly_points"`
	Level             int    `json:"level"`
	Experience        int    `json:"experience"`
	XPToNextLevel     int    `json:"xp_to_next_level"`
	XPProgressPercent int    `json:"xp_progress_percent"`
	StreakDays        int    `json:"streak_days"`

	// LastActivityDate - дата последней активности (YYYY-MM-DD), пусто если не было.
	LastActivityDate string `json:"last_activity_date,omitempty"`
}

// NewProgressSnapshotDTO строит снимок по записи. nil даёт нулевой снимок.
func NewProgressSnapshotDTO(userID string, r *progress.Record) *ProgressSnapshotDTO {
	if r == nil {
		r = progress.NewRecord(userID)
	}
	dto := &ProgressSnapshotDTO{
		UserID:            userID,
		TotalPoints:       r.TotalPoints,
		DailyPoints:       r.DailyPoints,
		WeeklyPoints:      r.WeeklyPoints,
		MonthlyPoints:     r.MonthlyPoints,
		Level:             r.Level.Int(),
		Experience:        r.Experience,
		XPToNextLevel:     r.XPToNextLevel(),
		XPProgressPercent: r.XPProgressPercent(),
		StreakDays:        r.StreakDays,
	}
	if r.HasActivity() {
		dto.LastActivityDate = r.LastActivityDate.Format(time.DateOnly)
	}
	return dto
}

// SnapshotCache - кэш снимков прогресса.
type SnapshotCache interface {
	// Get возвращает снимок или (nil, nil) при промахе.
	Get(ctx context.Context, userID string) (*ProgressSnapshotDTO, error)

	// Set сохраняет снимок.
	Set(ctx context.Context, snapshot *ProgressSnapshotDTO) error

	// Invalidate удаляет снимок пользователя.
	Invalidate(ctx context.Context, userID string) error

	// InvalidateAll удаляет все снимки.
	InvalidateAll(ctx context.Context) error
}

// GetProgressSnapshotHandler обрабатывает запрос снимка.
type GetProgressSnapshotHandler struct {
	progressRepo progress.Repository
	cache        SnapshotCache
	logger       *slog.Logger
}

// NewGetProgressSnapshotHandler создаёт обработчик. cache может быть nil.
func NewGetProgressSnapshotHandler(progressRepo progress.Repository, cache SnapshotCache, logger *slog.Logger) *GetProgressSnapshotHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetProgressSnapshotHandler{
		progressRepo: progressRepo,
		cache:        cache,
		logger:       logger.With("query", "get_progress_snapshot"),
	}
}

// Handle выполняет запрос.
func (h *GetProgressSnapshotHandler) Handle(ctx context.Context, q GetProgressSnapshotQuery) (*ProgressSnapshotDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_progress_snapshot: validation failed: %w", err)
	}
	userID := strings.TrimSpace(q.UserID)

	useCache := h.cache != nil && !q.SkipCache
	if useCache {
		cached, err := h.cache.Get(ctx, userID)
		if err != nil {
			h.logger.Warn("snapshot cache read failed", logger.UserID(userID), "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	record, err := h.progressRepo.Get(ctx, userID)
	if err != nil && !shared.IsNotFound(err) {
		return nil, fmt.Errorf("get_progress_snapshot: %w", err)
	}
	if shared.IsNotFound(err) {
		record = nil
	}

	dto := NewProgressSnapshotDTO(userID, record)

	if useCache && record != nil {
		if err := h.cache.Set(ctx, dto); err != nil {
			h.logger.Warn("snapshot cache write failed", logger.UserID(userID), "error", err)
		}
	}
	return dto, nil
}
