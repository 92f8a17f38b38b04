// Package linear provides a synchronous, line-buffered build renderer.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/mallard/internal/ui/term"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer with chronological, target-prefixed lines.
// Status lines go to stderr and target output to stdout.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu      sync.Mutex
	targets map[string]*targetState // spanID -> target
}

type targetState struct {
	name      string
	startTime time.Time
	buf       bytes.Buffer
}

// NewRenderer creates a renderer. Nil writers default to the process streams.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Renderer{
		stdout:  stdout,
		stderr:  stderr,
		output:  term.New(stderr),
		targets: make(map[string]*targetState),
	}
}

// Start is a no-op; the renderer is synchronous.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes partial lines of targets still running.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.targets {
		r.flushLocked(t)
	}
	return nil
}

// Wait is a no-op; the renderer is synchronous.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the size of the outdated set.
func (r *Renderer) OnPlanEmit(targets []string, _ map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.stderr, "%s building %d outdated target(s)\n",
		term.Paint(r.output, term.Dot, term.Teal), len(targets))
}

// OnTargetStart prints a start line.
func (r *Renderer) OnTargetStart(spanID, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[spanID] = &targetState{name: name, startTime: startTime}
	_, _ = fmt.Fprintf(r.stderr, "%s started\n", r.prefix(name))
}

// OnTargetLog prints complete lines of target output.
func (r *Renderer) OnTargetLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[spanID]
	if !ok {
		return
	}
	t.buf.Write(data)
	for {
		i := bytes.IndexByte(t.buf.Bytes(), '\n')
		if i < 0 {
			return
		}
		line := t.buf.Next(i + 1)
		r.printLineLocked(t.name, line)
	}
}

// OnTargetComplete flushes remaining output and prints the outcome.
func (r *Renderer) OnTargetComplete(spanID string, endTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[spanID]
	if !ok {
		return
	}
	r.flushLocked(t)
	delete(r.targets, spanID)

	duration := endTime.Sub(t.startTime).Round(time.Millisecond)
	if err != nil {
		_, _ = fmt.Fprintf(r.stderr, "%s %s failed after %v: %v\n",
			r.prefix(t.name), term.Paint(r.output, term.Cross, term.Red), duration, err)
		return
	}
	_, _ = fmt.Fprintf(r.stderr, "%s %s done in %v\n",
		r.prefix(t.name), term.Paint(r.output, term.Check, term.Green), duration)
}

func (r *Renderer) prefix(name string) string {
	return r.output.String("[" + name + "]").Faint().String()
}

func (r *Renderer) flushLocked(t *targetState) {
	if t.buf.Len() > 0 {
		r.printLineLocked(t.name, t.buf.Bytes())
		t.buf.Reset()
	}
}

func (r *Renderer) printLineLocked(name string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", name, line)
}
