// Package timeutil provides calendar-date utilities for the progress engine.
// A calendar date is represented as a time.Time at 00:00:00 UTC of that date,
// so dates compare with Equal/Before/After and subtract to whole days.
// "Today" is never read from an ambient clock inside the engine: callers
// obtain it from a Clock and pass it down explicitly.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// DateFormat is the wire and CLI format of a calendar date.
const DateFormat = "2006-01-02"

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current instant and the engine's calendar location.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a clock for the given IANA zone name.
// An empty name means UTC.
func NewSystemClock(zone string) (*SystemClock, error) {
	if zone == "" {
		return &SystemClock{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("timeutil: load location %q: %w", zone, err)
	}
	return &SystemClock{loc: loc}, nil
}

// Now returns the current time in the clock's location.
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's location.
func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// FixedClock always reports the same instant. Used by tests and by the CLI
// --today flag.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return c.At
}

// Location returns the fixed instant's location.
func (c FixedClock) Location() *time.Location {
	if c.At.Location() == nil {
		return time.UTC
	}
	return c.At.Location()
}

// Today returns the calendar date of the clock's current instant.
func Today(c Clock) time.Time {
	return DateOf(c.Now().In(c.Location()))
}

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR DATES
// ══════════════════════════════════════════════════════════════════════════════

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date creates a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSING & FORMATTING
// ══════════════════════════════════════════════════════════════════════════════

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parse date %q: %w", value, err)
	}
	return t, nil
}

// FormatDate formats a calendar date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateFormat)
}
