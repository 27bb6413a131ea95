package cli

import (
	"fmt"
	"io"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

type GoalCmd struct {
	Create GoalCreateCmd `cmd:"" help:"Create a goal."`
	Check  GoalCheckCmd  `cmd:"" help:"Check whether a goal is reached and unlock it."`
	List   GoalListCmd   `cmd:"" help:"List goals with their progress."`
}

type GoalCreateCmd struct {
	User        string `arg:"" help:"User id."`
	Title       string `arg:"" help:"Goal title."`
	Target      int    `required:"" help:"Points to reach."`
	Start       Date   `required:"" help:"First day of the window (YYYY-MM-DD)."`
	End         Date   `required:"" help:"Last day of the window (YYYY-MM-DD)."`
	Description string `help:"Goal description."`
	Reward      string `help:"Reward type." enum:"badge,title,achievement" default:"badge"`
	RewardName  string `help:"Reward name."`
	Icon        string `help:"Reward icon."`
	Color       string `help:"Reward color (#RRGGBB)."`
}

func (c *GoalCreateCmd) Run(ctx *Context) error {
	g, err := ctx.Engine.CreateGoal.Handle(ctx, command.CreateGoalCommand{
		UserID:       c.User,
		Title:        c.Title,
		Description:  c.Description,
		TargetPoints: c.Target,
		StartDate:    c.Start.Time,
		EndDate:      c.End.Time,
		RewardType:   c.Reward,
		RewardName:   c.RewardName,
		RewardIcon:   c.Icon,
		RewardColor:  c.Color,
	})
	if err != nil {
		return err
	}
	return ctx.emit(g, func(w io.Writer) {
		title(w, "Goal created")
		field(w, "id", g.ID)
		field(w, "title", g.Title)
		field(w, "target", g.TargetPoints)
		field(w, "window", timeutil.FormatDate(g.StartDate)+" .. "+timeutil.FormatDate(g.EndDate))
	})
}

type GoalCheckCmd struct {
	ID int64 `arg:"" help:"Goal id."`
}

func (c *GoalCheckCmd) Run(ctx *Context) error {
	res, err := ctx.Engine.CheckGoal.Handle(ctx, command.CheckGoalCommand{GoalID: c.ID})
	if err != nil {
		return err
	}
	return ctx.emit(res, func(w io.Writer) {
		title(w, fmt.Sprintf("Goal %d checked", c.ID))
		if len(res.Unlocked) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("  not reached yet"))
			return
		}
		printAward(w, res)
	})
}

type GoalListCmd struct {
	User string `arg:"" help:"User id."`
	All  bool   `help:"Include achieved and out-of-window goals."`
}

func (c *GoalListCmd) Run(ctx *Context) error {
	goals, err := ctx.Engine.Goals.Handle(ctx, query.ListGoalsQuery{UserID: c.User, IncludeInactive: c.All})
	if err != nil {
		return err
	}
	return ctx.emit(goals, func(w io.Writer) {
		title(w, fmt.Sprintf("Goals of %s (%d)", c.User, len(goals)))
		if len(goals) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("  none"))
		}
		for _, g := range goals {
			state := fmt.Sprintf("%d days left", g.DaysRemaining)
			switch {
			case g.Achieved:
				state = "achieved"
			case g.Expired:
				state = "expired"
			}
			fmt.Fprintf(w, "  #%d %s  %d/%d (%d%%)  %s\n",
				g.ID, g.Title, g.CurrentProgress, g.TargetPoints, g.ProgressPercentage, mutedStyle.Render(state))
		}
	})
}
