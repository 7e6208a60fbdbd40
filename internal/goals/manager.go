package goals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/sous/internal/celebrate"
	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/store"
	"github.com/abhisek/sous/internal/timeline"
)

// GoalInput holds the fields needed to create a goal.
type GoalInput struct {
	Title       string            `json:"title"`
	Category    progress.Category `json:"category"`
	Description string            `json:"description"`
	Deadline    *time.Time        `json:"deadline,omitempty"`
	Public      bool              `json:"public"`
}

// GoalPatch is a partial update. Nil fields are left unchanged.
//
// Progress and ID are accepted only so that a request trying to set them can
// be rejected explicitly.
type GoalPatch struct {
	Title         *string            `json:"title,omitempty"`
	Category      *progress.Category `json:"category,omitempty"`
	Description   *string            `json:"description,omitempty"`
	Deadline      *time.Time         `json:"deadline,omitempty"`
	ClearDeadline bool               `json:"clear_deadline,omitempty"`
	Public        *bool              `json:"public,omitempty"`

	Progress *int    `json:"progress,omitempty"`
	ID       *string `json:"id,omitempty"`
}

// ResourceInput describes a resource to attach to a goal.
type ResourceInput struct {
	Type  progress.ResourceType `json:"type"`
	Title string                `json:"title"`
	URL   string                `json:"url"`
}

// Manager owns goal lifecycle: create, update, delete, resources and
// visibility.
type Manager struct {
	c *collection
}

// NewManager creates a Manager. The trigger may be nil.
func NewManager(repo store.GoalRepo, tl *timeline.Timeline, trigger *celebrate.Trigger) *Manager {
	return &Manager{c: &collection{
		repo:     repo,
		timeline: tl,
		trigger:  trigger,
		now:      time.Now,
		owners:   make(map[string]*ownerGoals),
	}}
}

// Tracker returns the milestone tracker that shares this manager's goals.
func (m *Manager) Tracker() *Tracker {
	return &Tracker{c: m.c}
}

// Load replaces the owner's local goals with what persistence holds.
func (m *Manager) Load(ctx context.Context, ownerID string) ([]progress.Goal, error) {
	return m.c.load(ctx, ownerID)
}

// Goal returns a copy of one goal.
func (m *Manager) Goal(ownerID, goalID string) (progress.Goal, error) {
	return m.c.get(ownerID, goalID)
}

// Goals returns copies of the owner's goals in creation order.
func (m *Manager) Goals(ownerID string) []progress.Goal {
	return m.c.list(ownerID)
}

// CreateGoal validates in and persists a new goal with no milestones.
func (m *Manager) CreateGoal(ctx context.Context, ownerID string, in GoalInput) (progress.Goal, error) {
	if err := checkOwner(ownerID); err != nil {
		return progress.Goal{}, err
	}
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if err := validateGoalFields(title, in.Category, desc); err != nil {
		return progress.Goal{}, err
	}

	now := m.c.now().UTC()
	g := progress.Goal{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Category:    in.Category,
		Description: desc,
		Deadline:    utcPtr(in.Deadline),
		Public:      in.Public,
		Milestones:  []progress.Milestone{},
		Resources:   []progress.Resource{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	g.Recompute()
	return m.c.insert(ctx, g)
}

// UpdateGoal applies a patch to any goal field except its progress and id.
func (m *Manager) UpdateGoal(ctx context.Context, ownerID, goalID string, p GoalPatch) (progress.Goal, error) {
	if p.Progress != nil {
		return progress.Goal{}, &progress.InvariantViolation{Field: "progress", Reason: "derived from milestones, cannot be set"}
	}
	if p.ID != nil {
		return progress.Goal{}, &progress.InvariantViolation{Field: "id", Reason: "immutable"}
	}

	return m.c.commit(ctx, ownerID, goalID, func(g *progress.Goal) ([]progress.Achievement, error) {
		if p.Title != nil {
			g.Title = strings.TrimSpace(*p.Title)
		}
		if p.Category != nil {
			g.Category = *p.Category
		}
		if p.Description != nil {
			g.Description = strings.TrimSpace(*p.Description)
		}
		if err := validateGoalFields(g.Title, g.Category, g.Description); err != nil {
			return nil, err
		}
		switch {
		case p.ClearDeadline:
			g.Deadline = nil
		case p.Deadline != nil:
			g.Deadline = utcPtr(p.Deadline)
		}
		if p.Public != nil {
			return setVisibility(g, *p.Public), nil
		}
		return nil, nil
	})
}

// DeleteGoal removes a goal with its milestones and resources. Deleting an
// unknown goal is a no-op.
func (m *Manager) DeleteGoal(ctx context.Context, ownerID, goalID string) error {
	return m.c.delete(ctx, ownerID, goalID)
}

// AddResource attaches learning material to a goal.
func (m *Manager) AddResource(ctx context.Context, ownerID, goalID string, in ResourceInput) (progress.Resource, error) {
	r := progress.Resource{
		ID:    uuid.NewString(),
		Type:  in.Type,
		Title: strings.TrimSpace(in.Title),
		URL:   strings.TrimSpace(in.URL),
	}
	if !r.Type.Valid() {
		return progress.Resource{}, &progress.InvariantViolation{Field: "type", Reason: fmt.Sprintf("unknown resource type %q", in.Type)}
	}
	if r.Title == "" {
		return progress.Resource{}, &progress.InvariantViolation{Field: "title", Reason: "must not be empty"}
	}
	if r.URL == "" {
		return progress.Resource{}, &progress.InvariantViolation{Field: "url", Reason: "must not be empty"}
	}

	_, err := m.c.commit(ctx, ownerID, goalID, func(g *progress.Goal) ([]progress.Achievement, error) {
		g.Resources = append(g.Resources, r)
		return nil, nil
	})
	if err != nil {
		return progress.Resource{}, err
	}
	return r, nil
}

// RemoveResource detaches a resource from a goal.
func (m *Manager) RemoveResource(ctx context.Context, ownerID, goalID, resourceID string) error {
	_, err := m.c.commit(ctx, ownerID, goalID, func(g *progress.Goal) ([]progress.Achievement, error) {
		i := g.Resource(resourceID)
		if i < 0 {
			return nil, &progress.NotFoundError{Kind: "resource", ID: resourceID}
		}
		g.Resources = append(g.Resources[:i], g.Resources[i+1:]...)
		return nil, nil
	})
	return err
}

// SetVisibility shares or hides a goal. Sharing a private goal is recorded
// on the timeline as a social event.
func (m *Manager) SetVisibility(ctx context.Context, ownerID, goalID string, public bool) (progress.Goal, error) {
	return m.c.commit(ctx, ownerID, goalID, func(g *progress.Goal) ([]progress.Achievement, error) {
		return setVisibility(g, public), nil
	})
}

func setVisibility(g *progress.Goal, public bool) []progress.Achievement {
	wasPublic := g.Public
	g.Public = public
	if wasPublic || !public {
		return nil
	}
	return []progress.Achievement{{
		Title:       "Shared a goal",
		Description: fmt.Sprintf("Made %q public", g.Title),
		Type:        progress.AchievementSocial,
	}}
}

func validateGoalFields(title string, category progress.Category, description string) error {
	if title == "" {
		return &progress.InvariantViolation{Field: "title", Reason: "must not be empty"}
	}
	if !category.Valid() {
		return &progress.InvariantViolation{Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}
	if description == "" {
		return &progress.InvariantViolation{Field: "description", Reason: "must not be empty"}
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
