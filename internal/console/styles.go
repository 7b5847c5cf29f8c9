package console

import "github.com/charmbracelet/lipgloss"

var (
	// Colors meet WCAG AA contrast (4.5:1) on dark surfaces
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	greenColor   = lipgloss.Color("#10B981")
	amberColor   = lipgloss.Color("#F59E0B")
	redColor     = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")
	blueColor    = lipgloss.Color("#60A5FA")

	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	agentStyle   = lipgloss.NewStyle().Foreground(blueColor)
	stateStyle   = lipgloss.NewStyle().Foreground(greenColor)
	warnStyle    = lipgloss.NewStyle().Foreground(amberColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(redColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(amberColor)
	contentStyle = lipgloss.NewStyle()
)
