package progress

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies what a goal is about.
type Category string

const (
	CategoryTechnique    Category = "technique"
	CategoryCuisine      Category = "cuisine"
	CategoryBaking       Category = "baking"
	CategoryPastry       Category = "pastry"
	CategoryNutrition    Category = "nutrition"
	CategoryPresentation Category = "presentation"
	CategoryOther        Category = "other"
)

// AllCategories returns all goal categories in display order.
func AllCategories() []Category {
	return []Category{
		CategoryTechnique, CategoryCuisine, CategoryBaking, CategoryPastry,
		CategoryNutrition, CategoryPresentation, CategoryOther,
	}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// DisplayName returns a human-readable label for the category.
func (c Category) DisplayName() string {
	switch c {
	case CategoryTechnique:
		return "Technique"
	case CategoryCuisine:
		return "Cuisine"
	case CategoryBaking:
		return "Baking"
	case CategoryPastry:
		return "Pastry"
	case CategoryNutrition:
		return "Nutrition"
	case CategoryPresentation:
		return "Presentation"
	case CategoryOther:
		return "Other"
	default:
		return string(c)
	}
}

// ParseCategory converts user input into a Category, ignoring case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &InvariantViolation{Field: "category", Reason: fmt.Sprintf("unknown category %q", s)}
	}
	return c, nil
}

// ResourceType identifies the kind of learning material attached to a goal.
type ResourceType string

const (
	ResourceVideo   ResourceType = "video"
	ResourceArticle ResourceType = "article"
	ResourceRecipe  ResourceType = "recipe"
	ResourceCourse  ResourceType = "course"
)

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceVideo, ResourceArticle, ResourceRecipe, ResourceCourse:
		return true
	}
	return false
}

// ParseResourceType converts user input into a ResourceType, ignoring case.
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &InvariantViolation{Field: "type", Reason: fmt.Sprintf("unknown resource type %q", s)}
	}
	return t, nil
}

// Goal is a learning objective composed of milestones.
//
// Progress is derived from Milestones and is only ever written by Recompute.
type Goal struct {
	ID          string      `json:"id" yaml:"id"`
	OwnerID     string      `json:"owner_id" yaml:"owner_id"`
	Title       string      `json:"title" yaml:"title"`
	Category    Category    `json:"category" yaml:"category"`
	Description string      `json:"description" yaml:"description"`
	Deadline    *time.Time  `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Progress    int         `json:"progress" yaml:"progress"`
	Public      bool        `json:"public" yaml:"public"`
	Milestones  []Milestone `json:"milestones" yaml:"milestones"`
	Resources   []Resource  `json:"resources" yaml:"resources"`
	CreatedAt   time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"updated_at"`
}

// Milestone is a binary-completable sub-step of a goal.
type Milestone struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Completed   bool       `json:"completed" yaml:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// Resource is reference material attached to a goal.
type Resource struct {
	ID    string       `json:"id" yaml:"id"`
	Type  ResourceType `json:"type" yaml:"type"`
	Title string       `json:"title" yaml:"title"`
	URL   string       `json:"url" yaml:"url"`
}

// Recompute rederives Progress from the milestone list and returns the
// previous value.
func (g *Goal) Recompute() (previous int) {
	previous = g.Progress
	g.Progress = ComputeGoalProgress(g.Milestones)
	return previous
}

// State returns the goal's position in the Active/Completed cycle.
func (g *Goal) State() GoalState {
	return StateFor(g.Progress)
}

// Milestone returns the index of the milestone with the given ID, or -1.
func (g *Goal) Milestone(id string) int {
	for i := range g.Milestones {
		if g.Milestones[i].ID == id {
			return i
		}
	}
	return -1
}

// Resource returns the index of the resource with the given ID, or -1.
func (g *Goal) Resource(id string) int {
	for i := range g.Resources {
		if g.Resources[i].ID == id {
			return i
		}
	}
	return -1
}

// CompletedCount returns how many milestones are done.
func (g *Goal) CompletedCount() int {
	n := 0
	for _, m := range g.Milestones {
		if m.Completed {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the goal, so callers never share milestone or
// resource slices with engine state.
func (g Goal) Clone() Goal {
	out := g
	if g.Deadline != nil {
		d := *g.Deadline
		out.Deadline = &d
	}
	if g.Milestones != nil {
		out.Milestones = make([]Milestone, len(g.Milestones))
		for i, m := range g.Milestones {
			if m.CompletedAt != nil {
				t := *m.CompletedAt
				m.CompletedAt = &t
			}
			out.Milestones[i] = m
		}
	}
	if g.Resources != nil {
		out.Resources = append([]Resource(nil), g.Resources...)
	}
	return out
}
