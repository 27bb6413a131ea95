package habit

import (
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATOR (Серия и процент выполнения привычки)
// ══════════════════════════════════════════════════════════════════════════════

// Calculator вычисляет производные показатели одной привычки по истории отметок.
// Не зависит от системных часов: "сегодня" передаётся явно.
type Calculator struct {
	target int
	counts map[time.Time]int
}

// NewCalculator создаёт калькулятор по привычке и её отметкам.
func NewCalculator(h *Habit, entries []*Entry) *Calculator {
	counts := make(map[time.Time]int, len(entries))
	for _, e := range entries {
		counts[dateOnly(e.Date)] += e.Count
	}
	target := h.TargetCount
	if target < 1 {
		target = 1
	}
	return &Calculator{target: target, counts: counts}
}

// IsCompletedForDate - есть отметка за дату и count >= target_count.
func (c *Calculator) IsCompletedForDate(d time.Time) bool {
	count, ok := c.counts[dateOnly(d)]
	return ok && count >= c.target
}

// CurrentStreak идёт назад от today, пока дни выполнены.
// Сегодняшний день входит в серию, если выполнен.
func (c *Calculator) CurrentStreak(today time.Time) int {
	streak := 0
	for d := dateOnly(today); c.IsCompletedForDate(d); d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// WeeklyCompletionPercentage - доля выполненных дней среди прошедших дней
// текущей недели (с понедельника по today включительно).
func (c *Calculator) WeeklyCompletionPercentage(today time.Time) int {
	return c.completionPercentage(startOfWeek(today), today)
}

// MonthlyCompletionPercentage - доля выполненных дней среди прошедших дней
// текущего месяца (с 1-го числа по today включительно).
func (c *Calculator) MonthlyCompletionPercentage(today time.Time) int {
	t := dateOnly(today)
	return c.completionPercentage(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), t)
}

func (c *Calculator) completionPercentage(from, today time.Time) int {
	total, completed := 0, 0
	for d := dateOnly(from); !d.After(dateOnly(today)); d = d.AddDate(0, 0, 1) {
		total++
		if c.IsCompletedForDate(d) {
			completed++
		}
	}
	return shared.Percent(completed, total)
}

// DerivedStats - производные показатели привычки.
type DerivedStats struct {
	CurrentStreak            int
	WeeklyCompletionPercent  int
	MonthlyCompletionPercent int
	CompletedToday           bool
}

// Stats вычисляет все производные показатели на дату today.
func (c *Calculator) Stats(today time.Time) DerivedStats {
	return DerivedStats{
		CurrentStreak:            c.CurrentStreak(today),
		WeeklyCompletionPercent:  c.WeeklyCompletionPercentage(today),
		MonthlyCompletionPercent: c.MonthlyCompletionPercentage(today),
		CompletedToday:           c.IsCompletedForDate(today),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// PeriodStart возвращает начало периода статистики для today.
func PeriodStart(period shared.StatsPeriod, today time.Time) time.Time {
	t := dateOnly(today)
	switch period {
	case shared.StatsWeek:
		return startOfWeek(t)
	case shared.StatsYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// Statistics - сводка отметок за период.
type Statistics struct {
	// TotalCompletions - сумма count по отметкам периода.
	TotalCompletions int

	// CompletionDays - количество дней с отметкой.
	CompletionDays int

	// CurrentStreak - текущая серия привычки.
	CurrentStreak int

	// Entries - отметки периода по возрастанию даты.
	Entries []*Entry
}

// Summarize строит сводку по отметкам периода. periodEntries должны начинаться
// не раньше PeriodStart; серия считается по полной истории калькулятора.
func (c *Calculator) Summarize(periodEntries []*Entry, today time.Time) Statistics {
	stats := Statistics{
		CurrentStreak: c.CurrentStreak(today),
		Entries:       periodEntries,
	}
	for _, e := range periodEntries {
		stats.TotalCompletions += e.Count
		stats.CompletionDays++
	}
	return stats
}

func startOfWeek(d time.Time) time.Time {
	d = dateOnly(d)
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return d.AddDate(0, 0, -(weekday - 1))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
