// Package tui renders builds as an interactive terminal interface: the outdated
// targets on the left and the output of the selected target on the right.
package tui

import (
	"bytes"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	listWidthRatio = 0.3
	paneChrome     = 4
)

// Status is the display state of a target.
type Status string

const (
	// StatusPending indicates the target is waiting for its dependencies.
	StatusPending Status = "pending"
	// StatusRunning indicates an attempt is in progress.
	StatusRunning Status = "running"
	// StatusDone indicates the target was built.
	StatusDone Status = "done"
	// StatusFailed indicates the last attempt failed.
	StatusFailed Status = "failed"
)

// TargetNode is one row of the target list.
type TargetNode struct {
	Name     string
	Status   Status
	Attempts int
	Deps     []string
	Started  time.Time
	Elapsed  time.Duration
	Err      error
	Logs     bytes.Buffer
}

// Model is the Bubble Tea model of a build.
type Model struct {
	Targets     []*TargetNode
	ByName      map[string]*TargetNode
	BySpan      map[string]*TargetNode
	SelectedIdx int
	ListOffset  int
	ListHeight  int
	LogWidth    int
	// FollowMode moves the selection to whichever target started last.
	FollowMode  bool
	Interrupted bool

	viewport viewport.Model
	spinner  spinner.Model
}

// NewModel creates an empty model.
func NewModel() *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle
	return &Model{
		ByName:     make(map[string]*TargetNode),
		BySpan:     make(map[string]*TargetNode),
		FollowMode: true,
		viewport:   viewport.New(0, 0),
		spinner:    s,
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages and updates the model state.
//
//nolint:cyclop // message dispatch
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case msgPlan:
		m.Targets = make([]*TargetNode, len(msg.targets))
		m.ByName = make(map[string]*TargetNode, len(msg.targets))
		m.BySpan = make(map[string]*TargetNode)
		for i, name := range msg.targets {
			node := &TargetNode{Name: name, Status: StatusPending, Deps: msg.deps[name]}
			m.Targets[i] = node
			m.ByName[name] = node
		}
		m.SelectedIdx, m.ListOffset = 0, 0
		m.refreshLogs()

	case msgStart:
		name, _, _ := strings.Cut(msg.name, " (attempt ")
		node, ok := m.ByName[name]
		if !ok {
			return m, nil
		}
		node.Status = StatusRunning
		node.Attempts++
		node.Started = msg.start
		node.Err = nil
		m.BySpan[msg.spanID] = node
		if m.FollowMode {
			m.selectName(name)
		}

	case msgLog:
		if node, ok := m.BySpan[msg.spanID]; ok {
			node.Logs.Write(msg.data)
			if m.selected() == node {
				m.refreshLogs()
			}
		}

	case msgComplete:
		node, ok := m.BySpan[msg.spanID]
		if !ok {
			return m, nil
		}
		delete(m.BySpan, msg.spanID)
		node.Elapsed = msg.end.Sub(node.Started)
		node.Err = msg.err
		if msg.err != nil {
			node.Status = StatusFailed
		} else {
			node.Status = StatusDone
		}
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		m.Interrupted = true
		return tea.Quit
	case "q":
		return tea.Quit
	case "k", "up":
		if m.SelectedIdx > 0 {
			m.FollowMode = false
			m.selectIndex(m.SelectedIdx - 1)
		}
	case "j", "down":
		if m.SelectedIdx < len(m.Targets)-1 {
			m.FollowMode = false
			m.selectIndex(m.SelectedIdx + 1)
		}
	case "esc":
		m.FollowMode = true
		for i, t := range m.Targets {
			if t.Status == StatusRunning {
				m.selectIndex(i)
				break
			}
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) resize(width, height int) {
	listWidth := int(float64(width) * listWidthRatio)
	m.LogWidth = max(width-listWidth-paneChrome, 1)

	headerHeight := lipgloss.Height(titleStyle.Render("TARGETS") + "\n\n")
	m.ListHeight = max(height-headerHeight, 1)
	m.viewport.Width = m.LogWidth
	m.viewport.Height = max(height-lipgloss.Height(titleStyle.Render("LOGS")), 1)
	m.ensureVisible()
	m.refreshLogs()
}

func (m *Model) selectName(name string) {
	for i, t := range m.Targets {
		if t.Name == name {
			m.selectIndex(i)
			return
		}
	}
}

func (m *Model) selectIndex(i int) {
	m.SelectedIdx = i
	m.ensureVisible()
	m.refreshLogs()
}

func (m *Model) ensureVisible() {
	if m.ListHeight <= 0 {
		return
	}
	if m.SelectedIdx < m.ListOffset {
		m.ListOffset = m.SelectedIdx
	} else if m.SelectedIdx >= m.ListOffset+m.ListHeight {
		m.ListOffset = m.SelectedIdx - m.ListHeight + 1
	}
}

func (m *Model) selected() *TargetNode {
	if m.SelectedIdx >= 0 && m.SelectedIdx < len(m.Targets) {
		return m.Targets[m.SelectedIdx]
	}
	return nil
}

// refreshLogs shows the output of the selected target, sticking to the bottom
// unless the user scrolled up.
func (m *Model) refreshLogs() {
	node := m.selected()
	if node == nil {
		m.viewport.SetContent("")
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(WrapLog(node.Logs.String(), m.LogWidth))
	if atBottom || m.FollowMode {
		m.viewport.GotoBottom()
	}
}
