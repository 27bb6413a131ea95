package progress

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// STREAK (Серия активных дней)
// ══════════════════════════════════════════════════════════════════════════════

// NextStreak вычисляет серию после начисления в день today.
// Единственное состояние - дата предыдущей активности:
//   - вчера: серия продолжается (+1)
//   - сегодня или позже today (запоздавшее событие): без изменений
//   - иначе (пропуск или не было активности): серия начинается заново (1)
func NextStreak(current int, lastActivity, today time.Time) int {
	if lastActivity.IsZero() {
		return 1
	}

	switch gap := daysBetween(lastActivity, today); {
	case gap <= 0:
		if current < 1 {
			return 1
		}
		return current
	case gap == 1:
		return current + 1
	default:
		return 1
	}
}

// ReconcileStreak проверяет затухание серии без начисления: если последняя
// активность была не сегодня и не вчера, серия обнуляется.
// Возвращает новую серию и признак сброса.
func ReconcileStreak(current int, lastActivity, today time.Time) (int, bool) {
	if current == 0 {
		return 0, false
	}
	if lastActivity.IsZero() {
		return 0, true
	}

	if daysBetween(lastActivity, today) <= 1 {
		return current, false
	}
	return 0, true
}

// DaysUntilStreakBreaks возвращает, сколько дней осталось до сброса серии:
// 2 - был активен сегодня, 1 - нужно быть активным сегодня, 0 - серия уже потеряна.
func DaysUntilStreakBreaks(current int, lastActivity, today time.Time) int {
	if current == 0 || lastActivity.IsZero() {
		return 0
	}

	switch gap := daysBetween(lastActivity, today); {
	case gap <= 0:
		return 2
	case gap == 1:
		return 1
	default:
		return 0
	}
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
