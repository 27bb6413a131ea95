package query

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/habit"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HABIT STATS QUERIES
// Производные показатели привычки (серия, процент за неделю и месяц) и
// сводка отметок за период. Только чтение, прогресс пользователя не меняется.
// ══════════════════════════════════════════════════════════════════════════════

// GetHabitStatsQuery - запрос производных показателей.
type GetHabitStatsQuery struct {
	// HabitID - привычка.
	HabitID int64

	// Today - дата оценки (пустая = сегодня).
	Today time.Time
}

// HabitStatsDTO - производные показатели привычки.
type HabitStatsDTO struct {
	HabitID                  int64  `json:"habit_id"`
	Name                     string `json:"name"`
	TargetCount              int    `json:"target_count"`
	CurrentStreak            int    `json:"current_streak"`
	WeeklyCompletionPercent  int    `json:"weekly_completion_percent"`
	MonthlyCompletionPercent int    `json:"monthly_completion_percent"`
	CompletedToday           bool   `json:"completed_today"`
}

// GetHabitStatisticsQuery - запрос сводки за период.
type GetHabitStatisticsQuery struct {
	// HabitID - привычка.
	HabitID int64

	// Period - "week", "month" или "year" (пусто = month).
	Period string

	// Today - дата оценки (пустая = сегодня).
	Today time.Time
}

// HabitEntryDTO - отметка привычки.
type HabitEntryDTO struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Notes string `json:"notes,omitempty"`
}

// HabitStatisticsDTO - сводка отметок за период.
type HabitStatisticsDTO struct {
	HabitID          int64           `json:"habit_id"`
	Period           string          `json:"period"`
	TotalCompletions int             `json:"total_completions"`
	CompletionDays   int             `json:"completion_days"`
	CurrentStreak    int             `json:"current_streak"`
	Entries          []HabitEntryDTO `json:"entries"`
}

// HabitStatsHandler обрабатывает запросы статистики привычек.
type HabitStatsHandler struct {
	habitRepo habit.Repository
	clock     timeutil.Clock
}

// NewHabitStatsHandler создаёт обработчик.
func NewHabitStatsHandler(habitRepo habit.Repository, clock timeutil.Clock) *HabitStatsHandler {
	return &HabitStatsHandler{habitRepo: habitRepo, clock: clock}
}

// Stats возвращает производные показатели привычки.
func (h *HabitStatsHandler) Stats(ctx context.Context, q GetHabitStatsQuery) (*HabitStatsDTO, error) {
	hb, entries, today, err := h.load(ctx, q.HabitID, q.Today)
	if err != nil {
		return nil, fmt.Errorf("get_habit_stats: %w", err)
	}

	s := habit.NewCalculator(hb, entries).Stats(today)
	return &HabitStatsDTO{
		HabitID:                  hb.ID,
		Name:                     hb.Name,
		TargetCount:              hb.TargetCount,
		CurrentStreak:            s.CurrentStreak,
		WeeklyCompletionPercent:  s.WeeklyCompletionPercent,
		MonthlyCompletionPercent: s.MonthlyCompletionPercent,
		CompletedToday:           s.CompletedToday,
	}, nil
}

// Statistics возвращает сводку отметок за период. В сводку входят отметки
// с датой не раньше начала периода.
func (h *HabitStatsHandler) Statistics(ctx context.Context, q GetHabitStatisticsQuery) (*HabitStatisticsDTO, error) {
	period, err := shared.ParseStatsPeriod(q.Period)
	if err != nil {
		return nil, fmt.Errorf("get_habit_statistics: validation failed: %w", err)
	}

	hb, entries, today, err := h.load(ctx, q.HabitID, q.Today)
	if err != nil {
		return nil, fmt.Errorf("get_habit_statistics: %w", err)
	}

	start := habit.PeriodStart(period, today)
	var inPeriod []*habit.Entry
	for _, e := range entries {
		if !e.Date.Before(start) {
			inPeriod = append(inPeriod, e)
		}
	}

	s := habit.NewCalculator(hb, entries).Summarize(inPeriod, today)

	dto := &HabitStatisticsDTO{
		HabitID:          hb.ID,
		Period:           string(period),
		TotalCompletions: s.TotalCompletions,
		CompletionDays:   s.CompletionDays,
		CurrentStreak:    s.CurrentStreak,
		Entries:          make([]HabitEntryDTO, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		dto.Entries = append(dto.Entries, HabitEntryDTO{
			Date:  timeutil.FormatDate(e.Date),
			Count: e.Count,
			Notes: e.Notes,
		})
	}
	return dto, nil
}

// load читает привычку и всю историю её отметок.
func (h *HabitStatsHandler) load(ctx context.Context, habitID int64, today time.Time) (*habit.Habit, []*habit.Entry, time.Time, error) {
	if habitID <= 0 {
		return nil, nil, time.Time{}, shared.ErrInvalidID
	}
	if today.IsZero() {
		today = timeutil.Today(h.clock)
	}
	today = timeutil.DateOf(today)

	hb, err := h.habitRepo.GetByID(ctx, habitID)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	entries, err := h.habitRepo.ListEntries(ctx, habitID, time.Time{}, time.Time{})
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	return hb, entries, today, nil
}
