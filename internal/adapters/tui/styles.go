package tui

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/mallard/internal/ui/term"
)

var (
	listStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(term.Slate).
			MarginRight(1).
			PaddingRight(1)

	logStyle = lipgloss.NewStyle().
			PaddingLeft(1)

	pendingStyle = lipgloss.NewStyle().
			Foreground(term.Slate)

	runningStyle = lipgloss.NewStyle().
			Foreground(term.Teal).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(term.Green)

	failedStyle = lipgloss.NewStyle().
			Foreground(term.Red)

	selectedStyle = lipgloss.NewStyle().
			Foreground(term.Teal).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Background(term.Teal).
			Foreground(lipgloss.Color("#FFFFFF"))

	failureTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Padding(0, 1).
				Background(term.Red).
				Foreground(lipgloss.Color("#FFFFFF"))
)
