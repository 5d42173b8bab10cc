package tui

import "github.com/charmbracelet/lipgloss"

const sidebarWidth = 30

var (
	primaryColor = lipgloss.Color("#7D56F4")
	mutedColor   = lipgloss.Color("#626262")
	errorColor   = lipgloss.Color("#FF5F87")

	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			PaddingRight(1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(mutedColor)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)

	threadStyle       = lipgloss.NewStyle().PaddingLeft(1)
	activeThreadStyle = lipgloss.NewStyle().PaddingLeft(1).Bold(true).Foreground(primaryColor)
	summaryStyle      = lipgloss.NewStyle().PaddingLeft(1).Foreground(mutedColor)

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	mutedStyle          = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle          = lipgloss.NewStyle().Foreground(errorColor)
)
