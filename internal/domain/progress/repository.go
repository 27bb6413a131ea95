package progress

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции с записями прогресса.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Single Record
	// ─────────────────────────────────────────────────────────────────────────

	// Get возвращает запись пользователя.
	// Возвращает ErrProgressNotFound, если записи нет.
	Get(ctx context.Context, userID string) (*Record, error)

	// GetForUpdate возвращает запись и блокирует строку до конца транзакции
	// (если хранилище это поддерживает).
	// Возвращает ErrProgressNotFound, если записи нет.
	GetForUpdate(ctx context.Context, userID string) (*Record, error)

	// Save сохраняет запись с проверкой версии.
	// Новая запись (Version == 0) вставляется; существующая обновляется,
	// только если версия в хранилище совпадает с record.Version.
	// При успехе record.Version увеличивается.
	// Возвращает ErrVersionConflict при расхождении версий.
	Save(ctx context.Context, record *Record) error

	// ─────────────────────────────────────────────────────────────────────────
	// Bulk Operations
	// ─────────────────────────────────────────────────────────────────────────

	// ResetPeriod обнуляет периодический счётчик у всех пользователей
	// и увеличивает версии затронутых записей.
	// Возвращает количество изменённых записей.
	ResetPeriod(ctx context.Context, period shared.Period) (int64, error)

	// FindStaleStreaks возвращает пользователей с ненулевой серией,
	// чья последняя активность раньше вчерашнего дня относительно today.
	FindStaleStreaks(ctx context.Context, today time.Time, limit int) ([]string, error)

	// Count возвращает количество записей прогресса.
	Count(ctx context.Context) (int, error)
}
