package tui

import "github.com/charmbracelet/lipgloss"

// Colors - dark panel palette
const (
	colorBg        = "#0F172A" // Slate 900
	colorBgAlt     = "#1E293B" // Slate 800
	colorFg        = "#F8FAFC" // Slate 50
	colorFgMuted   = "#94A3B8" // Slate 400
	colorPrimary   = "#3B82F6" // Blue 500
	colorSecondary = "#8B5CF6" // Purple 500
	colorSuccess   = "#10B981" // Emerald 500
	colorWarning   = "#F59E0B" // Amber 500
	colorError     = "#EF4444" // Red 500
	colorBorder    = "#334155" // Slate 700
	colorUserMsg   = "#3B82F6" // Blue 500
	colorAgentMsg  = "#8B5CF6" // Purple 500
)

var (
	barStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorFg))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted))

	micLiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorError))

	agentBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorSecondary))

	userMessageStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(colorUserMsg))

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(colorSuccess))

	agentLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorAgentMsg))

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorWarning))

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted)).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted))
)
