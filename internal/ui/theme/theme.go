package theme

import (
	"charm.land/lipgloss/v2"
)

// Color palette, warm kitchen tones
var (
	Primary   = lipgloss.Color("#EA580C") // Paprika
	Secondary = lipgloss.Color("#65A30D") // Basil
	Accent    = lipgloss.Color("#FACC15") // Saffron
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#FAFAF9") // Stone white
	TextDim   = lipgloss.Color("#A8A29E") // Stone
	BgCard    = lipgloss.Color("#292524") // Cast iron
	Border    = lipgloss.Color("#44403C") // Warm slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)

	Banner = lipgloss.NewStyle().
		Bold(true).
		Foreground(Text).
		Background(Primary).
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Accent).
		Padding(1, 4).
		Align(lipgloss.Center)
)

// States
var (
	Done = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Pending = lipgloss.NewStyle().
		Foreground(TextDim)

	Failed = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

// Components
var (
	ProgressFilled = lipgloss.NewStyle().
			Foreground(Secondary)

	ProgressEmpty = lipgloss.NewStyle().
			Foreground(Border)

	StarFilled = lipgloss.NewStyle().
			Foreground(Accent)

	StarEmpty = lipgloss.NewStyle().
			Foreground(Border)
)
