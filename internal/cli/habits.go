package cli

import (
	"fmt"
	"io"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

type HabitCmd struct {
	Create     HabitCreateCmd     `cmd:"" help:"Create a habit."`
	Complete   HabitCompleteCmd   `cmd:"" help:"Mark a habit done for a day."`
	Uncomplete HabitUncompleteCmd `cmd:"" help:"Remove one completion from a day."`
	Stats      HabitStatsCmd      `cmd:"" help:"Show streak and completion rates."`
	Statistics HabitStatisticsCmd `cmd:"" help:"Show completions over a period."`
}

type HabitCreateCmd struct {
	User        string `arg:"" help:"User id."`
	Name        string `arg:"" help:"Habit name."`
	Frequency   string `help:"Frequency." enum:"daily,weekly,monthly" default:"daily"`
	Target      int    `help:"Completions per day that count as done." default:"1"`
	Description string `help:"Habit description."`
	Color       string `help:"Color (#RRGGBB)."`
}

func (c *HabitCreateCmd) Run(ctx *Context) error {
	h, err := ctx.Engine.Habits.Create(ctx, command.CreateHabitCommand{
		UserID:      c.User,
		Name:        c.Name,
		Description: c.Description,
		Frequency:   c.Frequency,
		TargetCount: c.Target,
		Color:       c.Color,
	})
	if err != nil {
		return err
	}
	return ctx.emit(h, func(w io.Writer) {
		title(w, "Habit created")
		field(w, "id", h.ID)
		field(w, "name", h.Name)
		field(w, "frequency", h.Frequency)
		field(w, "target", h.TargetCount)
	})
}

type HabitCompleteCmd struct {
	ID    int64  `arg:"" help:"Habit id."`
	User  string `arg:"" help:"Owner user id."`
	Date  Date   `help:"Day to mark (default today)."`
	Count int    `help:"Completions to add." default:"1"`
	Notes string `help:"Replace the day's notes."`
}

func (c *HabitCompleteCmd) Run(ctx *Context) error {
	cmd := command.CompleteHabitCommand{
		HabitID: c.ID,
		UserID:  c.User,
		Date:    c.Date.Time,
		Count:   c.Count,
	}
	if c.Notes != "" {
		cmd.Notes = &c.Notes
	}
	res, err := ctx.Engine.Habits.Complete(ctx, cmd)
	if err != nil {
		return err
	}
	return ctx.emit(res, func(w io.Writer) {
		title(w, "Habit completed")
		printEntry(w, res)
	})
}

type HabitUncompleteCmd struct {
	ID   int64  `arg:"" help:"Habit id."`
	User string `arg:"" help:"Owner user id."`
	Date Date   `help:"Day to change (default today)."`
}

func (c *HabitUncompleteCmd) Run(ctx *Context) error {
	res, err := ctx.Engine.Habits.Uncomplete(ctx, command.UncompleteHabitCommand{
		HabitID: c.ID,
		UserID:  c.User,
		Date:    c.Date.Time,
	})
	if err != nil {
		return err
	}
	return ctx.emit(res, func(w io.Writer) {
		title(w, "Habit uncompleted")
		printEntry(w, res)
	})
}

type HabitStatsCmd struct {
	ID int64 `arg:"" help:"Habit id."`
}

func (c *HabitStatsCmd) Run(ctx *Context) error {
	stats, err := ctx.Engine.HabitStats.Stats(ctx, query.GetHabitStatsQuery{HabitID: c.ID})
	if err != nil {
		return err
	}
	return ctx.emit(stats, func(w io.Writer) {
		title(w, stats.Name)
		field(w, "streak", fmt.Sprintf("%d days", stats.CurrentStreak))
		field(w, "this week", fmt.Sprintf("%d%%", stats.WeeklyCompletionPercent))
		field(w, "this month", fmt.Sprintf("%d%%", stats.MonthlyCompletionPercent))
		field(w, "done today", stats.CompletedToday)
	})
}

type HabitStatisticsCmd struct {
	ID     int64  `arg:"" help:"Habit id."`
	Period string `help:"Window to summarize." enum:"week,month,year" default:"month"`
}

func (c *HabitStatisticsCmd) Run(ctx *Context) error {
	stats, err := ctx.Engine.HabitStats.Statistics(ctx, query.GetHabitStatisticsQuery{HabitID: c.ID, Period: c.Period})
	if err != nil {
		return err
	}
	return ctx.emit(stats, func(w io.Writer) {
		title(w, fmt.Sprintf("Habit %d, last %s", stats.HabitID, stats.Period))
		field(w, "completions", stats.TotalCompletions)
		field(w, "days done", stats.CompletionDays)
		field(w, "streak", fmt.Sprintf("%d days", stats.CurrentStreak))
		for _, e := range stats.Entries {
			line := fmt.Sprintf("  %s  ×%d", e.Date, e.Count)
			if e.Notes != "" {
				line += "  " + mutedStyle.Render(e.Notes)
			}
			fmt.Fprintln(w, line)
		}
	})
}

func printEntry(w io.Writer, res *command.HabitEntryResult) {
	if res.Deleted || res.Entry == nil {
		fmt.Fprintln(w, mutedStyle.Render("  entry removed"))
		return
	}
	e := res.Entry
	field(w, "date", timeutil.FormatDate(e.Date))
	field(w, "count", e.Count)
	if e.Notes != "" {
		field(w, "notes", e.Notes)
	}
}
