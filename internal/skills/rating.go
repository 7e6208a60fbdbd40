package skills

import (
	"strings"

	"github.com/abhisek/sous/internal/progress"
)

// MaxStars is the top of the star scale.
const MaxStars = 5

// Rating is the star rendering of a skill level.
type Rating struct {
	Level int // clamped to 0..100
	Stars int // 0..MaxStars
}

// RenderLevel maps a 0-100 level onto 0-5 stars, one star per started band
// of 20 levels. It is total: out-of-range input is clamped first.
func RenderLevel(level int) Rating {
	level = min(max(level, progress.MinLevel), progress.MaxLevel)
	return Rating{
		Level: level,
		Stars: (level + 19) / 20,
	}
}

// String renders the rating as filled and empty stars.
func (r Rating) String() string {
	return strings.Repeat("★", r.Stars) + strings.Repeat("☆", MaxStars-r.Stars)
}
