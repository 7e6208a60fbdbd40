package progress

import "time"

// Skill level bounds. Skill levels are a 0-100 scale of their own and are not
// convertible to goal progress.
const (
	MinLevel = 0
	MaxLevel = 100
)

// Skill is a named competency with a numeric level, independent of any goal.
type Skill struct {
	ID             string       `json:"id" yaml:"id"`
	OwnerID        string       `json:"owner_id" yaml:"owner_id"`
	Name           string       `json:"name" yaml:"name"`
	Level          int          `json:"level" yaml:"level"`
	Endorsements   int          `json:"endorsements" yaml:"endorsements"`
	PracticedHours float64      `json:"practiced_hours" yaml:"practiced_hours"`
	Checkpoints    []Checkpoint `json:"checkpoints" yaml:"checkpoints"`
	CreatedAt      time.Time    `json:"created_at" yaml:"created_at"`
}

// Checkpoint records the skill level at a point in time.
type Checkpoint struct {
	Date  time.Time `json:"date" yaml:"date"`
	Level int       `json:"level" yaml:"level"`
}

// AssessmentResult is an externally computed suggestion for a skill. It is
// advisory: the engine caches it but never applies SuggestedLevel itself.
type AssessmentResult struct {
	SkillID             string    `json:"skill_id"`
	CurrentLevel        int       `json:"current_level"`
	SuggestedLevel      int       `json:"suggested_level"`
	Feedback            string    `json:"feedback"`
	RecommendedPractice []string  `json:"recommended_practice"`
	AssessedAt          time.Time `json:"assessed_at"`
}

// ValidLevel reports whether level is within the skill scale.
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

// Clone returns a deep copy of the skill.
func (s Skill) Clone() Skill {
	out := s
	if s.Checkpoints != nil {
		out.Checkpoints = append([]Checkpoint(nil), s.Checkpoints...)
	}
	return out
}
