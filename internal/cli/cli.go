// Package cli implements the progressctl commands. Each command is a kong
// struct whose Run method receives a Context holding the assembled engine.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"

	"github.com/alem-hub/progress-engine/internal/app"
	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// Root is the progressctl command tree.
type Root struct {
	Version kong.VersionFlag `help:"Print version and exit."`
	EnvFile string           `help:"Dotenv file to load before reading the environment." default:".env" type:"path"`
	Today   Date             `help:"Evaluate as if today were this date (YYYY-MM-DD)."`
	JSON    bool             `help:"Print results as JSON."`

	Award        AwardCmd        `cmd:"" help:"Credit points to a user."`
	Remove       RemoveCmd       `cmd:"" help:"Debit points from a user."`
	Complete     CompleteCmd     `cmd:"" help:"Record a completed task or habit action."`
	Revoke       RevokeCmd       `cmd:"" help:"Revoke a completed action."`
	Snapshot     SnapshotCmd     `cmd:"" help:"Show a user's progress snapshot."`
	Stats        StatsCmd        `cmd:"" help:"Show a user's summary statistics."`
	Achievements AchievementsCmd `cmd:"" help:"List a user's achievements."`
	Goal         GoalCmd         `cmd:"" help:"Manage goals."`
	Habit        HabitCmd        `cmd:"" help:"Manage habits."`
	Reconcile    ReconcileCmd    `cmd:"" help:"Reset streaks broken by missed days."`
	Reset        ResetCmd        `cmd:"" help:"Zero a period counter for all users."`
	Migrate      MigrateCmd      `cmd:"" help:"Apply pending storage migrations."`
	Features     FeaturesCmd     `cmd:"" help:"Show feature flags."`
}

// Context is passed to every command's Run.
type Context struct {
	context.Context

	Engine *app.Engine
	Out    io.Writer
	JSON   bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DATE FLAG
// ══════════════════════════════════════════════════════════════════════════════

// Date is a YYYY-MM-DD flag value. The zero Date means "today".
type Date struct {
	time.Time
}

// UnmarshalText implements encoding.TextUnmarshaler for kong.
func (d *Date) UnmarshalText(text []byte) error {
	t, err := timeutil.ParseDate(string(text))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Clock returns a clock frozen at noon of the date in loc, or nil when the
// date is unset.
func (d Date) Clock(loc *time.Location) timeutil.Clock {
	if d.IsZero() {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return timeutil.FixedClock{At: time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc)}
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	unlockStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// emit writes v as indented JSON in JSON mode and calls text otherwise.
func (c *Context) emit(v any, text func(w io.Writer)) error {
	if c.JSON {
		enc := json.NewEncoder(c.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(c.Out)
	return nil
}

func title(w io.Writer, s string) {
	fmt.Fprintln(w, titleStyle.Render(s))
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %v\n", labelStyle.Render(fmt.Sprintf("%-20s", label+":")), value)
}

// printAward renders the outcome of a credit: the points, level ups and
// unlocked goals.
func printAward(w io.Writer, res *command.AwardResult) {
	field(w, "user", res.UserID)
	field(w, "points", res.Points)
	if res.BonusPoints > 0 {
		field(w, "goal bonuses", res.BonusPoints)
	}
	if !res.LeveledUp() && len(res.Unlocked) == 0 {
		return
	}
	for _, up := range res.LevelUps {
		fmt.Fprintln(w, unlockStyle.Render(fmt.Sprintf("  ▲ level %d (+%d bonus)", up.Level, up.Bonus)))
	}
	for _, u := range res.Unlocked {
		fmt.Fprintln(w, unlockStyle.Render(fmt.Sprintf("  ★ goal %q achieved (+%d bonus)", u.Goal.Title, u.Bonus)))
	}
}

func printRemoval(w io.Writer, res *command.RemoveResult) {
	field(w, "user", res.UserID)
	field(w, "removed", res.Requested)
	if !res.Applied {
		fmt.Fprintln(w, mutedStyle.Render("  no progress record, nothing changed"))
		return
	}
	if res.NewLevel != res.OldLevel {
		field(w, "level", fmt.Sprintf("%d → %d", res.OldLevel, res.NewLevel))
	}
}
