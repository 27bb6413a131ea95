// Package activity описывает выполняемые действия пользователя (задачи
// календаря, отметки привычек) в том виде, в каком их видит движок прогресса:
// очки, дата выполнения и флаг выполнения. Хранение самих задач и привычек
// принадлежит внешней системе; движок хранит только то, что нужно для
// подсчёта прогресса целей.
package activity

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// DefaultTaskPoints - очки за задачу календаря по умолчанию.
const DefaultTaskPoints = 10

// Kind - тип действия.
type Kind string

const (
	// KindTask - задача календаря.
	KindTask Kind = "task"
	// KindHabit - отметка привычки.
	KindHabit Kind = "habit"
)

// IsValid проверяет тип действия.
func (k Kind) IsValid() bool {
	return k == KindTask || k == KindHabit
}

// ParseKind разбирает тип действия; пустая строка означает задачу.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return KindTask, nil
	}
	if !k.IsValid() {
		return "", shared.ErrInvalidActionKind
	}
	return k, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETABLE ACTION
// ══════════════════════════════════════════════════════════════════════════════

// Action - действие, за выполнение которого начисляются очки.
type Action struct {
	// ID - идентификатор действия во внешней системе.
	ID string

	// UserID - владелец.
	UserID string

	// Kind - тип действия.
	Kind Kind

	// Title - название (для отображения).
	Title string

	// Points - очки за выполнение.
	Points int

	// Completed - выполнено ли действие.
	Completed bool

	// CompletedAt - дата выполнения (полночь UTC). Нулевая, если не выполнено.
	CompletedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// MarkCompleted отмечает действие выполненным в указанную дату.
// Возвращает false, если действие уже было выполнено (повторная доставка).
func (a *Action) MarkCompleted(date time.Time) bool {
	if a.Completed {
		return false
	}
	a.Completed = true
	a.CompletedAt = date
	return true
}

// MarkIncomplete снимает отметку выполнения.
// Возвращает true, если действие было выполнено.
func (a *Action) MarkIncomplete() bool {
	was := a.Completed
	a.Completed = false
	a.CompletedAt = time.Time{}
	return was
}

// CountsInWindow проверяет, учитывается ли действие в окне цели.
func (a *Action) CountsInWindow(window shared.DateRange) bool {
	return a.Completed && window.Contains(a.CompletedAt)
}

// SumCompletedPoints суммирует очки выполненных действий внутри окна.
func SumCompletedPoints(actions []*Action, window shared.DateRange) int {
	sum := 0
	for _, a := range actions {
		if a.CountsInWindow(window) {
			sum += a.Points
		}
	}
	return sum
}

// Counts - статистика действий пользователя.
type Counts struct {
	Total     int
	Completed int
}

// Pending возвращает количество невыполненных действий.
func (c Counts) Pending() int {
	return c.Total - c.Completed
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет доступ к действиям.
type Repository interface {
	// Get возвращает действие по ID.
	// Возвращает ErrActionNotFound, если действия нет.
	Get(ctx context.Context, id string) (*Action, error)

	// Save создаёт или обновляет действие.
	Save(ctx context.Context, action *Action) error

	// SumCompletedPoints суммирует очки выполненных действий пользователя,
	// дата выполнения которых попадает в окно (границы включительно).
	SumCompletedPoints(ctx context.Context, userID string, window shared.DateRange) (int, error)

	// CountTasks возвращает количество задач пользователя (всего и выполненных).
	CountTasks(ctx context.Context, userID string) (Counts, error)
}
