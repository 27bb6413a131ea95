package cli

import (
	"fmt"
	"io"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINTS
// ══════════════════════════════════════════════════════════════════════════════

type AwardCmd struct {
	User   string `arg:"" help:"User id."`
	Points int    `arg:"" help:"Points to credit."`
	Date   Date   `help:"Effective date (default today)."`
	Reason string `help:"Reason recorded in the log."`
}

func (c *AwardCmd) Run(ctx *Context) error {
	res, err := ctx.Engine.AdjustPoints.Award(ctx, command.AwardPointsCommand{
		UserID: c.User,
		Points: c.Points,
		Date:   c.Date.Time,
		Reason: c.Reason,
	})
	if err != nil {
		return err
	}
	return ctx.emit(res, func(w io.Writer) {
		title(w, "Points awarded")
		printAward(w, res)
	})
}

type RemoveCmd struct {
	User   string `arg:"" help:"User id."`
	Points int    `arg:"" help:"Points to debit."`
	Reason string `help:"Reason recorded in the log."`
}

func (c *RemoveCmd) Run(ctx *Context) error {
	res, err := ctx.Engine.AdjustPoints.Remove(ctx, command.RemovePointsCommand{
		UserID: c.User,
		Points: c.Points,
		Reason: c.Reason,
	})
	if err != nil {
		return err
	}
	return ctx.emit(res, func(w io.Writer) {
		title(w, "Points removed")
		printRemoval(w, res)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

type CompleteCmd struct {
	User   string `arg:"" help:"User id."`
	Action string `help:"Action id; generated when empty."`
	Kind   string `help:"Action kind." enum:"task,habit" default:"task"`
	Title  string `help:"Action title."`
	Points int    `help:"Points value (0 = default task points)."`
	On     Date   `help:"Completion date (default today)."`
}

func (c *CompleteCmd) Run(ctx *Context) error {
	res, err := ctx.Engine.RecordCompletion.Handle(ctx, command.RecordCompletionCommand{
		UserID:      c.User,
		ActionID:    c.Action,
		Kind:        c.Kind,
		Title:       c.Title,
		Points:      c.Points,
		CompletedOn: c.On.Time,
	})
	if err != nil {
		return err
	}
	return ctx.emit(res, func(w io.Writer) {
		title(w, "Completion recorded")
		field(w, "action", res.ActionID)
		if res.Duplicate {
			fmt.Fprintln(w, mutedStyle.Render("  already completed, nothing changed"))
			return
		}
		printAward(w, res.Award)
	})
}

type RevokeCmd struct {
	User   string `arg:"" help:"User id."`
	Action string `help:"Action id."`
	Points int    `help:"Points to remove (0 = the stored action value)."`
}

func (c *RevokeCmd) Run(ctx *Context) error {
	res, err := ctx.Engine.RevokeCompletion.Handle(ctx, command.RevokeCompletionCommand{
		UserID:   c.User,
		ActionID: c.Action,
		Points:   c.Points,
	})
	if err != nil {
		return err
	}
	return ctx.emit(res, func(w io.Writer) {
		title(w, "Completion revoked")
		if res.NotCompleted || res.Removal == nil {
			fmt.Fprintln(w, mutedStyle.Render("  action was not completed, nothing changed"))
			return
		}
		printRemoval(w, res.Removal)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

type SnapshotCmd struct {
	User    string `arg:"" help:"User id."`
	NoCache bool   `help:"Bypass the snapshot cache."`
}

func (c *SnapshotCmd) Run(ctx *Context) error {
	snap, err := ctx.Engine.Snapshot.Handle(ctx, query.GetProgressSnapshotQuery{UserID: c.User, SkipCache: c.NoCache})
	if err != nil {
		return err
	}
	return ctx.emit(snap, func(w io.Writer) {
		title(w, "Progress of "+snap.UserID)
		field(w, "level", snap.Level)
		field(w, "experience", fmt.Sprintf("%d (%d%%, %d to next level)", snap.Experience, snap.XPProgressPercent, snap.XPToNextLevel))
		field(w, "total points", snap.TotalPoints)
		field(w, "today / week / month", fmt.Sprintf("%d / %d / %d", snap.DailyPoints, snap.WeeklyPoints, snap.MonthlyPoints))
		field(w, "streak", fmt.Sprintf("%d days", snap.StreakDays))
		if snap.LastActivityDate != "" {
			field(w, "last activity", snap.LastActivityDate)
		}
	})
}

type StatsCmd struct {
	User string `arg:"" help:"User id."`
}

func (c *StatsCmd) Run(ctx *Context) error {
	stats, err := ctx.Engine.UserStats.Handle(ctx, query.GetUserStatsQuery{UserID: c.User})
	if err != nil {
		return err
	}
	return ctx.emit(stats, func(w io.Writer) {
		title(w, "Statistics of "+stats.UserID)
		field(w, "tasks", fmt.Sprintf("%d completed, %d pending", stats.CompletedTasks, stats.PendingTasks))
		field(w, "level", stats.Level)
		field(w, "total points", stats.TotalPoints)
		streak := fmt.Sprintf("%d days", stats.StreakDays)
		if stats.StreakDaysLeft == 1 {
			streak += mutedStyle.Render("  (log activity today to keep it)")
		}
		field(w, "streak", streak)
		field(w, "goals", fmt.Sprintf("%d active, %d achieved", stats.ActiveGoals, stats.AchievedGoals))
		field(w, "achievements", stats.TotalAchievements)
	})
}

type AchievementsCmd struct {
	User     string `arg:"" help:"User id."`
	Page     int    `help:"Page number." default:"1"`
	PageSize int    `help:"Items per page." default:"20"`
}

func (c *AchievementsCmd) Run(ctx *Context) error {
	list, err := ctx.Engine.Achievements.Handle(ctx, query.ListAchievementsQuery{
		UserID:   c.User,
		Page:     c.Page,
		PageSize: c.PageSize,
	})
	if err != nil {
		return err
	}
	return ctx.emit(list, func(w io.Writer) {
		title(w, fmt.Sprintf("Achievements (%d total, page %d)", list.Total, list.Page))
		if len(list.Items) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("  none yet"))
		}
		for _, a := range list.Items {
			fmt.Fprintf(w, "  %s %s %s\n", a.BadgeIcon, a.Title,
				mutedStyle.Render(fmt.Sprintf("+%d · %s", a.PointsEarned, a.CreatedAt.Format("2006-01-02"))))
		}
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MAINTENANCE
// ══════════════════════════════════════════════════════════════════════════════

type ReconcileCmd struct {
	User string `help:"Reconcile a single user; all stale streaks when empty."`
}

func (c *ReconcileCmd) Run(ctx *Context) error {
	res, err := ctx.Engine.ReconcileStreak.Handle(ctx, command.ReconcileStreakCommand{UserID: c.User})
	if err != nil {
		return err
	}
	return ctx.emit(res, func(w io.Writer) {
		title(w, "Streaks reconciled")
		field(w, "checked", res.Checked)
		field(w, "reset", res.Reset)
		if res.Failed > 0 {
			field(w, "failed", res.Failed)
		}
	})
}

type ResetCmd struct {
	Period string `arg:"" help:"Counter to zero." enum:"daily,weekly,monthly"`
}

func (c *ResetCmd) Run(ctx *Context) error {
	res, err := ctx.Engine.ResetPeriod.Handle(ctx, command.ResetPeriodPointsCommand{Period: c.Period})
	if err != nil {
		return err
	}
	return ctx.emit(res, func(w io.Writer) {
		title(w, fmt.Sprintf("Reset %s points", res.Period))
		field(w, "users affected", fmt.Sprintf("%d of %d", res.Affected, res.Users))
	})
}

type MigrateCmd struct {
	Rollback bool `help:"Revert the last applied migration instead (postgres only)."`
}

func (c *MigrateCmd) Run(ctx *Context) error {
	if c.Rollback {
		if err := ctx.Engine.Rollback(ctx); err != nil {
			return err
		}
		return ctx.emit(map[string]bool{"rolled_back": true}, func(w io.Writer) {
			title(w, "Migrations")
			field(w, "rolled back", "last migration")
		})
	}
	applied, err := ctx.Engine.Migrate(ctx)
	if err != nil {
		return err
	}
	return ctx.emit(map[string]int{"applied": applied}, func(w io.Writer) {
		title(w, "Migrations")
		field(w, "applied", applied)
	})
}

type FeaturesCmd struct {
	User string `help:"Evaluate partial rollouts for this user."`
}

type featureState struct {
	Name    string `json:"name"`
	Rollout int    `json:"rollout_percent"`
	On      bool   `json:"on"`
}

func (c *FeaturesCmd) Run(ctx *Context) error {
	flags := ctx.Engine.Config.Features
	var states []featureState
	for _, f := range flags.List() {
		on := flags.IsEnabled(f.Name)
		if c.User != "" {
			on = flags.IsEnabledFor(f.Name, c.User)
		}
		states = append(states, featureState{Name: f.Name, Rollout: f.RolloutPercent, On: on})
	}
	return ctx.emit(states, func(w io.Writer) {
		title(w, "Feature flags")
		for _, s := range states {
			state := mutedStyle.Render("off")
			if s.On {
				state = unlockStyle.Render("on")
			}
			field(w, s.Name, fmt.Sprintf("%s (%d%%)", state, s.Rollout))
		}
	})
}
