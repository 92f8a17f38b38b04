package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/mallard/internal/ui/term"
)

// View renders the UI.
func (m *Model) View() string {
	if m.ListHeight == 0 {
		return "Initializing..."
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.targetList(), m.logPane())
}

func (m *Model) targetList() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("TARGETS") + "\n\n")

	end := min(m.ListOffset+m.ListHeight, len(m.Targets))
	start := min(m.ListOffset, end)
	for i := start; i < end; i++ {
		s.WriteString(m.renderRow(i, m.Targets[i]) + "\n")
	}
	return listStyle.Render(s.String())
}

func (m *Model) renderRow(index int, t *TargetNode) string {
	style := statusStyle(t.Status)
	cursor := "  "
	if index == m.SelectedIdx {
		cursor = selectedStyle.Render("> ")
		if t.Status == StatusPending || t.Status == StatusRunning {
			style = selectedStyle
		}
	}

	content := m.icon(t) + " " + t.Name
	if t.Attempts > 1 {
		content += fmt.Sprintf(" (attempt %d)", t.Attempts)
	}
	if t.Status == StatusDone || t.Status == StatusFailed {
		content += " " + t.Elapsed.Round(time.Millisecond).String()
	}
	return cursor + style.Render(content)
}

func (m *Model) icon(t *TargetNode) string {
	switch t.Status {
	case StatusRunning:
		return m.spinner.View()
	case StatusDone:
		return term.Check
	case StatusFailed:
		return term.Cross
	case StatusPending:
		return "○"
	default:
		return "○"
	}
}

func statusStyle(s Status) lipgloss.Style {
	switch s {
	case StatusRunning:
		return runningStyle
	case StatusDone:
		return doneStyle
	case StatusFailed:
		return failedStyle
	case StatusPending:
		return pendingStyle
	default:
		return pendingStyle
	}
}

func (m *Model) logPane() string {
	var header string
	node := m.selected()
	switch {
	case node == nil:
		header = titleStyle.Render("LOGS (Waiting...)")
	case node.Status == StatusFailed:
		header = failureTitleStyle.Render("LOGS: " + node.Name + " (failed)")
	default:
		mode := " (Manual)"
		if m.FollowMode {
			mode = " (Following)"
		}
		header = titleStyle.Render("LOGS: " + node.Name + mode)
	}

	content := m.viewport.View()
	if node != nil && node.Err != nil {
		content = failedStyle.Render(WrapLog(node.Err.Error(), m.LogWidth)) + "\n" + content
	}
	return logStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content))
}

// WrapLog soft-wraps s at width columns. A non-positive width leaves s unchanged.
func WrapLog(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}
