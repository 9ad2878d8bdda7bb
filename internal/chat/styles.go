package chat

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette, light/dark variants of the same accents.
var (
	lightAccent = lipgloss.Color("#101F38") // dark blue
	darkAccent  = lipgloss.Color("#8BC34A") // lime green
	lightMuted  = lipgloss.Color("#6b7280")
	darkMuted   = lipgloss.Color("#9ca3af")

	errorColor = lipgloss.Color("#e53935")
	infoColor  = lipgloss.Color("#2196F3")
)

// Styles holds the lipgloss styles used by the REPL.
type Styles struct {
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Error          lipgloss.Style
	Info           lipgloss.Style
	Muted          lipgloss.Style
}

// DefaultStyles returns styles for the given theme ("light" or "dark").
func DefaultStyles(theme string) Styles {
	accent, muted := darkAccent, darkMuted
	if theme == "light" {
		accent, muted = lightAccent, lightMuted
	}
	return Styles{
		UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(accent),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(infoColor),
		Error:          lipgloss.NewStyle().Foreground(errorColor),
		Info:           lipgloss.NewStyle().Foreground(infoColor),
		Muted:          lipgloss.NewStyle().Foreground(muted),
	}
}
