package view

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("99")
	mutedColor  = lipgloss.Color("240")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	statusStyles = map[string]lipgloss.Style{
		"idle":      lipgloss.NewStyle().Foreground(mutedColor),
		"running":   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		"completed": lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"failed":    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	severityStyles = map[string]lipgloss.Style{
		"info":     lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		"success":  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"error":    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		"response": lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	}

	// Lost connections use a warning color so they never read as a failed
	// run
	connectionStyles = map[string]lipgloss.Style{
		"live":         lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"connecting":   lipgloss.NewStyle().Foreground(mutedColor),
		"reconnecting": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"offline":      lipgloss.NewStyle().Foreground(mutedColor),
		"disconnected": lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
	}

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)

func styleFor(styles map[string]lipgloss.Style, key string) lipgloss.Style {
	if s, ok := styles[key]; ok {
		return s
	}
	return mutedStyle
}
