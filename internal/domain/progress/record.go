package progress

import (
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record представляет накопленный прогресс пользователя: очки, опыт,
// уровень и серию активных дней. Одна запись на пользователя, создаётся
// лениво при первом начислении.
type Record struct {
	// UserID - идентификатор владельца.
	UserID string

	// TotalPoints - все очки за всё время (включая бонусы за уровень).
	TotalPoints int

	// DailyPoints - очки за текущий день (обнуляется планировщиком).
	DailyPoints int

	// WeeklyPoints - очки за текущую неделю.
	WeeklyPoints int

	// MonthlyPoints - очки за текущий месяц.
	MonthlyPoints int

	// Experience - опыт, определяющий уровень. Бонусы за уровень сюда не идут.
	Experience int

	// Level - текущий уровень, всегда равен LevelForXP(Experience).
	Level shared.Level

	// StreakDays - серия дней подряд с активностью.
	StreakDays int

	// LastActivityDate - дата последнего начисления (нулевое значение = не было).
	LastActivityDate time.Time

	// Version - версия записи для оптимистичной блокировки. 0 = ещё не сохранена.
	Version int64

	// CreatedAt - время создания.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewRecord создаёт пустую запись прогресса.
func NewRecord(userID string) *Record {
	return &Record{
		UserID: userID,
		Level:  shared.MinLevel,
	}
}

// HasActivity возвращает true, если было хотя бы одно начисление.
func (r *Record) HasActivity() bool {
	return !r.LastActivityDate.IsZero()
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// LevelUp описывает один полученный уровень.
type LevelUp struct {
	// Level - новый уровень.
	Level shared.Level

	// Bonus - очки, добавленные к TotalPoints.
	Bonus int
}

// AwardOutcome - результат начисления.
type AwardOutcome struct {
	// Points - начисленные очки.
	Points int

	// LevelUps - полученные уровни, по одному на каждый шаг.
	LevelUps []LevelUp

	// OldStreak - серия до начисления.
	OldStreak int

	// NewStreak - серия после начисления.
	NewStreak int
}

// StreakChanged возвращает true, если серия изменилась.
func (o AwardOutcome) StreakChanged() bool {
	return o.OldStreak != o.NewStreak
}

// Award начисляет очки. Порядок: счётчики и опыт, дата активности,
// пересчёт уровня, обновление серии. today - календарная дата (UTC полночь).
func (r *Record) Award(points shared.Points, today time.Time) (AwardOutcome, error) {
	if !points.IsValid() {
		return AwardOutcome{}, shared.ErrInvalidPoints
	}

	n := points.Int()
	previousActivity := r.LastActivityDate

	r.TotalPoints += n
	r.DailyPoints += n
	r.WeeklyPoints += n
	r.MonthlyPoints += n
	r.Experience += n
	if today.After(r.LastActivityDate) {
		r.LastActivityDate = today
	}

	outcome := AwardOutcome{
		Points:    n,
		LevelUps:  r.applyLevelUps(),
		OldStreak: r.StreakDays,
	}

	r.StreakDays = NextStreak(r.StreakDays, previousActivity, today)
	outcome.NewStreak = r.StreakDays

	return outcome, nil
}

// applyLevelUps поднимает уровень, пока опыт покрывает порог следующего.
// Каждый шаг даёт бонус new_level*10 к TotalPoints (не к опыту).
func (r *Record) applyLevelUps() []LevelUp {
	var ups []LevelUp
	for r.Experience >= (r.Level + 1).RequiredXP() {
		r.Level++
		bonus := r.Level.Bonus()
		r.TotalPoints += bonus
		ups = append(ups, LevelUp{Level: r.Level, Bonus: bonus})
	}
	return ups
}

// RemoveOutcome - результат списания.
type RemoveOutcome struct {
	// Requested - запрошенное количество очков.
	Requested int

	// OldLevel - уровень до списания.
	OldLevel shared.Level

	// NewLevel - уровень после списания.
	NewLevel shared.Level
}

// Remove списывает очки. Каждый счётчик ограничивается нулём независимо.
// Дата активности и серия не меняются, уровень пересчитывается по опыту.
func (r *Record) Remove(points shared.Points) (RemoveOutcome, error) {
	if !points.IsValid() {
		return RemoveOutcome{}, shared.ErrInvalidPoints
	}

	n := points.Int()
	outcome := RemoveOutcome{Requested: n, OldLevel: r.Level}

	r.TotalPoints = floorZero(r.TotalPoints - n)
	r.DailyPoints = floorZero(r.DailyPoints - n)
	r.WeeklyPoints = floorZero(r.WeeklyPoints - n)
	r.MonthlyPoints = floorZero(r.MonthlyPoints - n)
	r.Experience = floorZero(r.Experience - n)
	r.Level = shared.LevelForXP(r.Experience)

	outcome.NewLevel = r.Level
	return outcome, nil
}

// ResetPeriod обнуляет периодический счётчик.
func (r *Record) ResetPeriod(period shared.Period) error {
	switch period {
	case shared.PeriodDaily:
		r.DailyPoints = 0
	case shared.PeriodWeekly:
		r.WeeklyPoints = 0
	case shared.PeriodMonthly:
		r.MonthlyPoints = 0
	default:
		return shared.ErrInvalidPeriod
	}
	return nil
}

// ReconcileStreak обнуляет серию, если сегодня активности не было
// и последняя активность была не вчера. Возвращает true, если серия сброшена.
func (r *Record) ReconcileStreak(today time.Time) bool {
	next, reset := ReconcileStreak(r.StreakDays, r.LastActivityDate, today)
	r.StreakDays = next
	return reset
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED VALUES
// ══════════════════════════════════════════════════════════════════════════════

// XPToNextLevel возвращает опыт, недостающий до следующего уровня.
func (r *Record) XPToNextLevel() int {
	return shared.XPToNextLevel(r.Level, r.Experience)
}

// XPProgressPercent возвращает прогресс внутри текущего уровня (0-100).
func (r *Record) XPProgressPercent() int {
	return shared.XPProgressPercent(r.Level, r.Experience)
}

// Validate проверяет инварианты записи.
func (r *Record) Validate() error {
	if !shared.UserID(r.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	for _, v := range []int{r.TotalPoints, r.DailyPoints, r.WeeklyPoints, r.MonthlyPoints, r.Experience, r.StreakDays} {
		if v < 0 {
			return shared.NewDomainError("progress", "Validate", shared.ErrNegativeValue, "counters must be non-negative")
		}
	}
	if r.Level != shared.LevelForXP(r.Experience) {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidState, "level does not match experience")
	}
	return nil
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
