package main

import "github.com/charmbracelet/lipgloss"

// Listing styles for the index, fragment and stats output.
var (
	primaryColor = lipgloss.Color("#8BC34A") // Lime Green
	mutedColor   = lipgloss.Color("#6B7280")
	infoColor    = lipgloss.Color("#2196F3")
	warningColor = lipgloss.Color("#FFC107")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	idStyle = lipgloss.NewStyle().
		Foreground(infoColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	warnStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	labelStyle = lipgloss.NewStyle().
			Width(28)
)
