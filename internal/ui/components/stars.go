package components

import (
	"fmt"
	"strings"

	"github.com/abhisek/sous/internal/skills"
	"github.com/abhisek/sous/internal/ui/theme"
)

// StarRating renders a skill level as colored stars followed by the level.
func StarRating(level int) string {
	r := skills.RenderLevel(level)
	return theme.StarFilled.Render(strings.Repeat("★", r.Stars)) +
		theme.StarEmpty.Render(strings.Repeat("☆", skills.MaxStars-r.Stars)) +
		theme.Subtitle.Render(fmt.Sprintf(" %d/100", r.Level))
}

// Checkbox renders a milestone line.
func Checkbox(title string, done bool) string {
	if done {
		return theme.Done.Render("[x]") + " " + theme.Body.Render(title)
	}
	return theme.Pending.Render("[ ]") + " " + theme.Body.Render(title)
}
