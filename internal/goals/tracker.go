package goals

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/abhisek/sous/internal/progress"
)

// Tracker edits the milestones of goals held by a Manager. Every edit
// recomputes the goal's progress before it is persisted.
type Tracker struct {
	c *collection
}

// AddMilestone appends an incomplete milestone to a goal.
func (t *Tracker) AddMilestone(ctx context.Context, ownerID, goalID, title string) (progress.Milestone, error) {
	m := progress.Milestone{ID: uuid.NewString(), Title: strings.TrimSpace(title)}
	if m.Title == "" {
		return progress.Milestone{}, &progress.InvariantViolation{Field: "title", Reason: "must not be empty"}
	}
	_, err := t.c.commit(ctx, ownerID, goalID, func(g *progress.Goal) ([]progress.Achievement, error) {
		g.Milestones = append(g.Milestones, m)
		return nil, nil
	})
	if err != nil {
		return progress.Milestone{}, err
	}
	return m, nil
}

// ToggleMilestone flips a milestone's completion. Completing a milestone is
// recorded on the timeline, and so is completing the whole goal.
func (t *Tracker) ToggleMilestone(ctx context.Context, ownerID, goalID, milestoneID string) (progress.Goal, error) {
	return t.c.commit(ctx, ownerID, goalID, func(g *progress.Goal) ([]progress.Achievement, error) {
		i := g.Milestone(milestoneID)
		if i < 0 {
			return nil, &progress.NotFoundError{Kind: "milestone", ID: milestoneID}
		}
		m := &g.Milestones[i]
		if m.Completed {
			m.Completed = false
			m.CompletedAt = nil
			return nil, nil
		}

		now := t.c.now().UTC()
		m.Completed = true
		m.CompletedAt = &now
		events := []progress.Achievement{{
			Title:       m.Title,
			Description: fmt.Sprintf("Milestone reached in %q", g.Title),
			Date:        now,
			Type:        progress.AchievementMilestone,
		}}
		if progress.ComputeGoalProgress(g.Milestones) == 100 {
			events = append(events, progress.Achievement{
				Title:       "Goal completed: " + g.Title,
				Description: fmt.Sprintf("All %d milestones done", len(g.Milestones)),
				Date:        now,
				Type:        progress.AchievementEarned,
			})
		}
		return events, nil
	})
}

// RenameMilestone changes a milestone's title without touching progress.
func (t *Tracker) RenameMilestone(ctx context.Context, ownerID, goalID, milestoneID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &progress.InvariantViolation{Field: "title", Reason: "must not be empty"}
	}
	_, err := t.c.commit(ctx, ownerID, goalID, func(g *progress.Goal) ([]progress.Achievement, error) {
		i := g.Milestone(milestoneID)
		if i < 0 {
			return nil, &progress.NotFoundError{Kind: "milestone", ID: milestoneID}
		}
		g.Milestones[i].Title = title
		return nil, nil
	})
	return err
}

// RemoveMilestone drops a milestone. Progress is recomputed, so removing the
// last incomplete milestone completes the goal.
func (t *Tracker) RemoveMilestone(ctx context.Context, ownerID, goalID, milestoneID string) (progress.Goal, error) {
	return t.c.commit(ctx, ownerID, goalID, func(g *progress.Goal) ([]progress.Achievement, error) {
		i := g.Milestone(milestoneID)
		if i < 0 {
			return nil, &progress.NotFoundError{Kind: "milestone", ID: milestoneID}
		}
		before := g.Progress
		g.Milestones = append(g.Milestones[:i], g.Milestones[i+1:]...)
		if !progress.IsNewlyCompleted(before, progress.ComputeGoalProgress(g.Milestones)) {
			return nil, nil
		}
		return []progress.Achievement{{
			Title:       "Goal completed: " + g.Title,
			Description: fmt.Sprintf("All %d milestones done", len(g.Milestones)),
			Type:        progress.AchievementEarned,
		}}, nil
	})
}
