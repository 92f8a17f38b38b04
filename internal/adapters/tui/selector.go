package tui

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
)

// Output modes accepted by SetMode.
const (
	ModeAuto   = "auto"
	ModeTUI    = "tui"
	ModeLinear = "linear"
)

var _ ports.Renderer = (*Selector)(nil)

// Selector forwards to the interactive or the linear renderer. The choice is made
// on Start so every build of a watch session resolves auto mode again.
type Selector struct {
	interactive ports.Renderer
	linear      ports.Renderer
	isTerminal  func() bool

	mu     sync.RWMutex
	mode   string
	active ports.Renderer
}

// NewSelector creates a selector in auto mode. Until the first Start, events go
// to the linear renderer.
func NewSelector(interactive, linear ports.Renderer) *Selector {
	return &Selector{
		interactive: interactive,
		linear:      linear,
		isTerminal:  stderrIsTerminal,
		mode:        ModeAuto,
		active:      linear,
	}
}

// SetMode selects auto, tui or linear output for the next build.
func (s *Selector) SetMode(mode string) error {
	switch mode {
	case "":
		mode = ModeAuto
	case ModeAuto, ModeTUI, ModeLinear:
	default:
		return domain.Detail(domain.ErrMalformedContext, "output", mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

// Mode returns the configured output mode.
func (s *Selector) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Start resolves the mode and starts the chosen renderer.
func (s *Selector) Start(ctx context.Context) error {
	s.mu.Lock()
	s.active = s.resolve()
	active := s.active
	s.mu.Unlock()
	return active.Start(ctx)
}

func (s *Selector) resolve() ports.Renderer {
	switch s.mode {
	case ModeTUI:
		return s.interactive
	case ModeLinear:
		return s.linear
	default:
		if os.Getenv("CI") == "" && os.Getenv("TERM") != "dumb" && s.isTerminal() {
			return s.interactive
		}
		return s.linear
	}
}

// Stop stops the active renderer.
func (s *Selector) Stop() error {
	return s.current().Stop()
}

// Wait waits for the active renderer.
func (s *Selector) Wait() error {
	return s.current().Wait()
}

// OnPlanEmit forwards to the active renderer.
func (s *Selector) OnPlanEmit(targets []string, deps map[string][]string) {
	s.current().OnPlanEmit(targets, deps)
}

// OnTargetStart forwards to the active renderer.
func (s *Selector) OnTargetStart(spanID, name string, startTime time.Time) {
	s.current().OnTargetStart(spanID, name, startTime)
}

// OnTargetLog forwards to the active renderer.
func (s *Selector) OnTargetLog(spanID string, data []byte) {
	s.current().OnTargetLog(spanID, data)
}

// OnTargetComplete forwards to the active renderer.
func (s *Selector) OnTargetComplete(spanID string, endTime time.Time, err error) {
	s.current().OnTargetComplete(spanID, endTime, err)
}

func (s *Selector) current() ports.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
