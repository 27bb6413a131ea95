// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"math"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies the owner of a progress record, goals and habits.
// The engine treats it as opaque: it is issued by the account system.
type UserID string

// IsValid checks that the ID is not blank.
func (u UserID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Points is an amount passed to the ledger. It must be strictly positive.
type Points int

// IsValid checks the ledger precondition.
func (p Points) IsValid() bool {
	return p > 0
}

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// NewPoints creates Points, rejecting non-positive amounts with a
// precondition violation.
func NewPoints(amount int) (Points, error) {
	if amount <= 0 {
		return 0, ErrInvalidPoints
	}
	return Points(amount), nil
}

// RoundHalfUp rounds a non-negative ratio to the nearest integer,
// halves going up.
func RoundHalfUp(v float64) int {
	return int(math.Round(v))
}

// Percent returns round(100 * part / whole), or 0 when whole is 0.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return RoundHalfUp(float64(part) * 100 / float64(whole))
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level is a user's level, derived from experience.
type Level int

// MinLevel is the level of a fresh record.
const MinLevel Level = 1

// LevelUpBonusPerLevel is multiplied by the newly reached level to get the
// bonus added to total points.
const LevelUpBonusPerLevel = 10

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the experience threshold of the level:
// 100*L + 25*L*(L-1), so 100, 250, 450, 700, 1000...
// Each step costs 50 more experience than the previous one.
func (l Level) RequiredXP() int {
	if l < MinLevel {
		l = MinLevel
	}
	n := int(l)
	return n*100 + 25*n*(n-1)
}

// Bonus returns the total-points bonus granted on reaching this level.
func (l Level) Bonus() int {
	return int(l) * LevelUpBonusPerLevel
}

// LevelForXP returns the largest level whose threshold experience meets,
// never less than MinLevel.
func LevelForXP(experience int) Level {
	level := MinLevel
	for experience >= (level + 1).RequiredXP() {
		level++
	}
	return level
}

// XPToNextLevel returns max(0, requiredXP(level+1) - experience).
func XPToNextLevel(level Level, experience int) int {
	remaining := (level + 1).RequiredXP() - experience
	if remaining < 0 {
		return 0
	}
	return remaining
}

// XPProgressPercent returns progress within the current level, clamped to [0,100].
func XPProgressPercent(level Level, experience int) int {
	floor := level.RequiredXP()
	span := (level + 1).RequiredXP() - floor
	if span == 0 {
		return 0
	}
	pct := 100 * (experience - floor) / span
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Period Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Period names a periodic points counter.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// IsValid checks if the period is known.
func (p Period) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// ParsePeriod parses a counter period name.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", ErrInvalidPeriod
	}
	return p, nil
}

// StatsPeriod is the look-back window of habit statistics.
type StatsPeriod string

const (
	StatsWeek  StatsPeriod = "week"
	StatsMonth StatsPeriod = "month"
	StatsYear  StatsPeriod = "year"
)

// ParseStatsPeriod parses a statistics period; empty means month.
func ParseStatsPeriod(s string) (StatsPeriod, error) {
	switch p := StatsPeriod(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return StatsMonth, nil
	case StatsWeek, StatsMonth, StatsYear:
		return p, nil
	}
	return "", ErrInvalidStatsPeriod
}

// ═══════════════════════════════════════════════════════════════════════════
// DateRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the range is non-empty.
func (r DateRange) IsValid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && !r.From.After(r.To)
}

// Contains checks if a date is inside the range, bounds included.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// NewDateRange creates a new DateRange with validation.
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: from, To: to}
	if !r.IsValid() {
		return DateRange{}, NewDomainError("shared", "NewDateRange", ErrInvalidInput, "'from' must not be after 'to'")
	}
	return r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}
