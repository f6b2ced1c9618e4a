package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette shared by all command output.
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan
	colorMuted     = lipgloss.Color("#6C7086") // Medium gray
	colorSuccess   = lipgloss.Color("#A6E3A1") // Green
	colorWarning   = lipgloss.Color("#F9E2AF") // Yellow
	colorError     = lipgloss.Color("#F38BA8") // Red
)

// styles are the lipgloss styles used when printing a live session.
type styles struct {
	Title    lipgloss.Style
	Source   lipgloss.Style
	Interim  lipgloss.Style
	KeyPoint lipgloss.Style
	Action   lipgloss.Style
	Status   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
}

func newStyles() styles {
	return styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary),

		Source: lipgloss.NewStyle().
			Foreground(colorSecondary),

		Interim: lipgloss.NewStyle().
			Italic(true).
			Foreground(colorMuted),

		KeyPoint: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWarning),

		Action: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary),

		Status: lipgloss.NewStyle().
			Foreground(colorMuted),

		Success: lipgloss.NewStyle().
			Foreground(colorSuccess),

		Warning: lipgloss.NewStyle().
			Foreground(colorWarning),

		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError),
	}
}
