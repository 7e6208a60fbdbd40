package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/sous/internal/ui/theme"
)

// ProgressBar displays a goal's completion as a horizontal bar.
type ProgressBar struct {
	Label       string
	Percent     int // 0..100
	ShowPercent bool
	Width       int
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(label string, percent int, showPercent bool, width int) ProgressBar {
	return ProgressBar{
		Label:       label,
		Percent:     percent,
		ShowPercent: showPercent,
		Width:       width,
	}
}

// View renders the progress bar.
func (p ProgressBar) View() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(theme.Body.Render(p.Label))
		b.WriteString("  ")
	}

	labelWidth := lipgloss.Width(b.String())
	percentWidth := 0
	if p.ShowPercent {
		percentWidth = 6 // "  100%", right-aligned
	}

	barWidth := max(p.Width-labelWidth-percentWidth, 4)
	percent := min(max(p.Percent, 0), 100)
	filled := barWidth * percent / 100

	b.WriteString(theme.ProgressFilled.Render(strings.Repeat("█", filled)))
	b.WriteString(theme.ProgressEmpty.Render(strings.Repeat("░", barWidth-filled)))

	if p.ShowPercent {
		b.WriteString(theme.Subtitle.Render(fmt.Sprintf("  %3d%%", percent)))
	}
	return b.String()
}
