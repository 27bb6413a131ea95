package memory

import (
	"context"
	"sort"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/goal"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Ensure interfaces are met.
var _ goal.Repository = (*GoalRepository)(nil)
var _ goal.AchievementRepository = (*AchievementRepository)(nil)

// --- goal.Repository ---

// GoalRepository stores goals.
type GoalRepository struct {
	s *Store
}

// Create stores a new goal and assigns its ID.
func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	return r.s.write(ctx, func(st *state) error {
		st.goalSeq++
		g.ID = st.goalSeq
		st.goals[g.ID] = *g
		return nil
	})
}

// GetByID returns a copy of the goal.
func (r *GoalRepository) GetByID(ctx context.Context, id int64) (*goal.Goal, error) {
	var (
		g  goal.Goal
		ok bool
	)
	r.s.read(func(st *state) { g, ok = st.goals[id] })
	if !ok {
		return nil, shared.ErrGoalNotFound
	}
	return &g, nil
}

// ListActive returns unachieved goals whose window contains today, by ID.
func (r *GoalRepository) ListActive(ctx context.Context, userID string, today time.Time) ([]*goal.Goal, error) {
	return r.list(func(g *goal.Goal) bool {
		return g.UserID == userID && g.IsActive(today)
	}), nil
}

// ListByUser returns all goals of the user by ID.
func (r *GoalRepository) ListByUser(ctx context.Context, userID string) ([]*goal.Goal, error) {
	return r.list(func(g *goal.Goal) bool { return g.UserID == userID }), nil
}

// MarkAchieved sets the achieved flag once.
func (r *GoalRepository) MarkAchieved(ctx context.Context, id int64, at time.Time) error {
	return r.s.write(ctx, func(st *state) error {
		g, ok := st.goals[id]
		if !ok {
			return shared.ErrGoalNotFound
		}
		if err := g.MarkAchieved(at); err != nil {
			return err
		}
		st.goals[id] = g
		return nil
	})
}

// CountByUser counts active and achieved goals.
func (r *GoalRepository) CountByUser(ctx context.Context, userID string, today time.Time) (goal.Counts, error) {
	var c goal.Counts
	for _, g := range r.list(func(g *goal.Goal) bool { return g.UserID == userID }) {
		switch {
		case g.Achieved:
			c.Achieved++
		case g.IsActive(today):
			c.Active++
		}
	}
	return c, nil
}

func (r *GoalRepository) list(match func(g *goal.Goal) bool) []*goal.Goal {
	var out []*goal.Goal
	r.s.read(func(st *state) {
		for _, g := range st.goals {
			g := g
			if match(&g) {
				out = append(out, &g)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- goal.AchievementRepository ---

// AchievementRepository stores achievements.
type AchievementRepository struct {
	s *Store
}

// Create stores the achievement. At most one achievement exists per goal.
func (r *AchievementRepository) Create(ctx context.Context, a *goal.Achievement) error {
	return r.s.write(ctx, func(st *state) error {
		if a.GoalID != nil {
			for _, existing := range st.achievements {
				if existing.GoalID != nil && *existing.GoalID == *a.GoalID {
					return shared.ErrAchievementExists
				}
			}
		}
		st.achievementSeq++
		a.ID = st.achievementSeq
		st.achievements[a.ID] = *a
		return nil
	})
}

// GetByGoal returns the achievement created for the goal.
func (r *AchievementRepository) GetByGoal(ctx context.Context, goalID int64) (*goal.Achievement, error) {
	var (
		found goal.Achievement
		ok    bool
	)
	r.s.read(func(st *state) {
		for _, a := range st.achievements {
			if a.GoalID != nil && *a.GoalID == goalID {
				found, ok = a, true
				return
			}
		}
	})
	if !ok {
		return nil, shared.WrapError("goal", "FindAchievement", shared.ErrNotFound, "achievement not found", nil)
	}
	return &found, nil
}

// ListByUser returns the user's achievements, newest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string, page shared.Pagination) ([]*goal.Achievement, error) {
	var all []*goal.Achievement
	r.s.read(func(st *state) {
		for _, a := range st.achievements {
			if a.UserID == userID {
				a := a
				all = append(all, &a)
			}
		}
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	offset := page.Offset()
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + page.Limit()
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// CountByUser counts the user's achievements.
func (r *AchievementRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	r.s.read(func(st *state) {
		for _, a := range st.achievements {
			if a.UserID == userID {
				n++
			}
		}
	})
	return n, nil
}
