package tui

import "github.com/charmbracelet/lipgloss"

var (
	brandPrimary = lipgloss.Color("#7C3AED") // Purple
	brandAccent  = lipgloss.Color("#10B981") // Emerald
	brandWarning = lipgloss.Color("#F59E0B") // Amber
	brandError   = lipgloss.Color("#EF4444") // Red
	textMuted    = lipgloss.Color("#6B7280") // Gray

	titleStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true).
			MarginBottom(1)

	messageStyle = lipgloss.NewStyle().Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(brandAccent).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(brandError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(brandWarning)

	dimStyle = lipgloss.NewStyle().
			Foreground(textMuted)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandPrimary).
			Padding(1, 2)
)
