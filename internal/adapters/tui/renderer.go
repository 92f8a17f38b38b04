package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/mallard/internal/core/ports"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer drives a Bubble Tea program as a ports.Renderer.
// Every Start runs a fresh program so a renderer can serve consecutive builds.
type Renderer struct {
	opts []tea.ProgramOption

	mu      sync.Mutex
	program *tea.Program
	model   *Model
	done    chan error
}

// NewRenderer creates a renderer drawing on out. A nil out draws on stderr.
func NewRenderer(out io.Writer, opts ...tea.ProgramOption) *Renderer {
	if out == nil {
		out = os.Stderr
	}
	opts = append([]tea.ProgramOption{tea.WithOutput(out), tea.WithAltScreen()}, opts...)
	return &Renderer{opts: opts}
}

// Start launches the program in a background goroutine.
func (r *Renderer) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return errors.New("renderer already started")
	}

	r.model = NewModel()
	r.program = tea.NewProgram(r.model, r.opts...)
	r.done = make(chan error, 1)

	program, model, done := r.program, r.model, r.done
	go func() {
		_, err := program.Run()
		if model.Interrupted {
			interrupt()
		}
		done <- err
	}()
	return nil
}

// Stop asks the program to quit.
func (r *Renderer) Stop() error {
	if p := r.current(); p != nil {
		p.Quit()
	}
	return nil
}

// Wait blocks until the program has terminated and the terminal is restored.
func (r *Renderer) Wait() error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	err := <-done

	r.mu.Lock()
	r.program, r.model, r.done = nil, nil, nil
	r.mu.Unlock()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// OnPlanEmit forwards the outdated targets to the program.
func (r *Renderer) OnPlanEmit(targets []string, deps map[string][]string) {
	r.send(msgPlan{targets: targets, deps: deps})
}

// OnTargetStart forwards attempt starts to the program.
func (r *Renderer) OnTargetStart(spanID, name string, startTime time.Time) {
	r.send(msgStart{spanID: spanID, name: name, start: startTime})
}

// OnTargetLog forwards target output to the program.
func (r *Renderer) OnTargetLog(spanID string, data []byte) {
	r.send(msgLog{spanID: spanID, data: append([]byte(nil), data...)})
}

// OnTargetComplete forwards attempt completions to the program.
func (r *Renderer) OnTargetComplete(spanID string, endTime time.Time, err error) {
	r.send(msgComplete{spanID: spanID, end: endTime, err: err})
}

func (r *Renderer) current() *tea.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.program
}

// send drops events arriving while no program runs.
func (r *Renderer) send(msg tea.Msg) {
	if p := r.current(); p != nil {
		p.Send(msg)
	}
}

// interrupt turns ctrl+c, which the program reads as a key press in raw mode,
// back into the SIGINT that cancels the build.
func interrupt() {
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(os.Interrupt)
	}
}
