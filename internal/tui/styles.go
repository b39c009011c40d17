package tui

import "github.com/charmbracelet/lipgloss"

// ANSI palette indexes.
const (
	colorAccent = lipgloss.Color("12")
	colorMuted  = lipgloss.Color("8")
	colorBot    = lipgloss.Color("14")
	colorUser   = lipgloss.Color("10")
	colorError  = lipgloss.Color("9")
	colorFile   = lipgloss.Color("11")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).PaddingLeft(1)
	subtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)

	// Speaker labels in the scrollback.
	botStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorBot)
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorUser)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	documentStyle = lipgloss.NewStyle().Foreground(colorFile)

	dimStyle      = lipgloss.NewStyle().Faint(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorUser)
	helpStyle     = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)
