// Package progress содержит доменную модель прогресса пользователя:
// очки, опыт, уровень и серию активных дней.
//
// Пакет определяет:
//
//   - Сущность Record - одна запись на пользователя, создаётся лениво
//   - Правила начисления и списания очков (Award, Remove)
//   - Правила серии (NextStreak, ReconcileStreak)
//   - Интерфейс репозитория Repository
//
// # Инварианты
//
//  1. Все счётчики и опыт неотрицательны в любой наблюдаемый момент
//  2. Level всегда равен shared.LevelForXP(Experience)
//  3. Бонус за уровень (new_level*10) идёт только в TotalPoints
//
// # Даты
//
// Пакет никогда не читает системные часы. "Сегодня" передаётся
// вызывающим кодом как календарная дата (полночь UTC):
//
//	record := NewRecord(userID)
//	outcome, err := record.Award(shared.Points(250), today)
//	// record.Level == 2, record.TotalPoints == 270, record.StreakDays == 1
//
// Нулевые внешние зависимости - только стандартная библиотека Go.
package progress
