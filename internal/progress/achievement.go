package progress

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// AchievementType identifies the kind of timeline event.
type AchievementType string

const (
	AchievementMilestone AchievementType = "milestone"
	AchievementEarned    AchievementType = "achievement"
	AchievementSocial    AchievementType = "social"
)

// AllAchievementTypes returns all known achievement types in display order.
func AllAchievementTypes() []AchievementType {
	return []AchievementType{AchievementMilestone, AchievementEarned, AchievementSocial}
}

// Valid reports whether t is a known type.
func (t AchievementType) Valid() bool {
	return slices.Contains(AllAchievementTypes(), t)
}

// ParseAchievementType parses a type name case-insensitively.
func ParseAchievementType(s string) (AchievementType, error) {
	t := AchievementType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &InvariantViolation{Field: "category", Reason: fmt.Sprintf("unknown achievement type %q", s)}
	}
	return t, nil
}

// DisplayName returns a human-readable label for the type.
func (t AchievementType) DisplayName() string {
	switch t {
	case AchievementMilestone:
		return "Milestone"
	case AchievementEarned:
		return "Achievement"
	case AchievementSocial:
		return "Social"
	default:
		return string(t)
	}
}

// Icon returns the display icon for the type. Unknown types get a generic
// marker rather than an error.
func (t AchievementType) Icon() string {
	switch t {
	case AchievementMilestone:
		return "🎯"
	case AchievementEarned:
		return "🏆"
	case AchievementSocial:
		return "🤝"
	default:
		return "✦"
	}
}

// Achievement is an immutable, timestamped timeline entry.
type Achievement struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Type        AchievementType `json:"type"`
	Icon        string          `json:"icon"`
	GoalID      string          `json:"goal_id,omitempty"`
	SkillID     string          `json:"skill_id,omitempty"`

	// Sequence is the insertion position assigned by the timeline; it breaks
	// ties between entries with the same date.
	Sequence int64 `json:"sequence"`
}
