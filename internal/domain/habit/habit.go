// Package habit содержит привычки, ежедневные отметки и расчёт
// производных показателей привычки: серии и процента выполнения.
// Расчёт только читает историю отметок и не влияет на прогресс пользователя.
package habit

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Frequency - периодичность привычки.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// IsValid проверяет периодичность.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// DefaultColor - цвет привычки по умолчанию.
const DefaultColor = "#3B82F6"

// ══════════════════════════════════════════════════════════════════════════════
// HABIT
// ══════════════════════════════════════════════════════════════════════════════

// Habit - привычка пользователя.
type Habit struct {
	// ID - идентификатор.
	ID int64

	// UserID - владелец.
	UserID string

	// Name - название.
	Name string

	// Description - описание.
	Description string

	// Frequency - периодичность.
	Frequency Frequency

	// TargetCount - сколько отметок за день нужно, чтобы день считался выполненным.
	TargetCount int

	// Color - цвет (#RRGGBB).
	Color string

	// IsActive - активна ли привычка.
	IsActive bool

	// CreatedAt - время создания.
	CreatedAt time.Time
}

// NewHabitParams содержит параметры для создания привычки.
type NewHabitParams struct {
	UserID      string
	Name        string
	Description string
	Frequency   Frequency
	TargetCount int
	Color       string
}

// NewHabit создаёт привычку с валидацией.
func NewHabit(params NewHabitParams, now time.Time) (*Habit, error) {
	if !shared.UserID(params.UserID).IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, shared.ErrInvalidHabitName
	}

	freq := params.Frequency
	if freq == "" {
		freq = FrequencyDaily
	}
	if !freq.IsValid() {
		return nil, shared.ErrInvalidFrequency
	}

	target := params.TargetCount
	if target == 0 {
		target = 1
	}
	if target < 1 {
		return nil, shared.ErrInvalidHabitTarget
	}

	color := params.Color
	if color == "" {
		color = DefaultColor
	}

	return &Habit{
		UserID:      strings.TrimSpace(params.UserID),
		Name:        strings.TrimSpace(params.Name),
		Description: params.Description,
		Frequency:   freq,
		TargetCount: target,
		Color:       color,
		IsActive:    true,
		CreatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry - отметка привычки за календарный день. Уникальна по (habit, user, date).
type Entry struct {
	// ID - идентификатор.
	ID int64

	// HabitID - привычка.
	HabitID int64

	// UserID - владелец.
	UserID string

	// Date - календарная дата (полночь UTC).
	Date time.Time

	// Count - сколько раз выполнено за день.
	Count int

	// Notes - заметки.
	Notes string

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// Increment добавляет n выполнений. Заметки заменяются, только если переданы.
func (e *Entry) Increment(n int, notes *string) error {
	if n < 1 {
		return shared.ErrInvalidHabitCount
	}
	e.Count += n
	if notes != nil {
		e.Notes = *notes
	}
	return nil
}

// Decrement убирает одно выполнение. Возвращает true, если отметку
// нужно удалить целиком (было не больше одного выполнения).
func (e *Entry) Decrement() bool {
	if e.Count <= 1 {
		e.Count = 0
		return true
	}
	e.Count--
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции с привычками и отметками.
type Repository interface {
	// Create сохраняет новую привычку и присваивает ей ID.
	Create(ctx context.Context, h *Habit) error

	// GetByID возвращает привычку.
	// Возвращает ErrHabitNotFound, если её нет.
	GetByID(ctx context.Context, id int64) (*Habit, error)

	// ListByUser возвращает привычки пользователя по ID.
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*Habit, error)

	// GetEntry возвращает отметку за дату.
	// Возвращает ErrHabitEntryNotFound, если её нет.
	GetEntry(ctx context.Context, habitID int64, userID string, date time.Time) (*Entry, error)

	// SaveEntry создаёт или обновляет отметку (уникальность по habit, user, date).
	SaveEntry(ctx context.Context, e *Entry) error

	// DeleteEntry удаляет отметку.
	DeleteEntry(ctx context.Context, habitID int64, userID string, date time.Time) error

	// ListEntries возвращает отметки привычки в диапазоне дат по возрастанию даты.
	// Нулевой from означает "с начала истории", нулевой to - "без верхней границы".
	ListEntries(ctx context.Context, habitID int64, from, to time.Time) ([]*Entry, error)
}
