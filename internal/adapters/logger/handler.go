package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/mallard/internal/ui/term"
)

type levelStyle struct {
	icon  string
	color lipgloss.Color
}

// styleFor picks the icon and color of a record level.
func styleFor(level slog.Level) levelStyle {
	switch {
	case level >= slog.LevelError:
		return levelStyle{icon: term.Cross, color: term.Red}
	case level >= slog.LevelWarn:
		return levelStyle{icon: term.Warning, color: term.Yellow}
	case level < slog.LevelInfo:
		return levelStyle{color: term.Gray}
	default:
		return levelStyle{color: term.Slate}
	}
}

// PrettyHandler is a slog.Handler writing one colored line per record,
// followed by its attributes as key=value pairs.
type PrettyHandler struct {
	out    *termenv.Output
	level  slog.Leveler
	prefix string // group path, dot terminated
	attrs  []string
}

// NewPrettyHandler creates a handler writing to w, or stderr if w is nil.
// The level is read on every record, so a *slog.LevelVar can be changed later.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}
	h := &PrettyHandler{out: term.New(w), level: slog.LevelInfo}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// Enabled implements slog.Handler.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	style := styleFor(r.Level)

	var b strings.Builder
	if style.icon != "" {
		b.WriteString(style.icon + " ")
	}
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		b.WriteString(" " + a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if s := h.format(a); s != "" {
			b.WriteString(" " + s)
		}
		return true
	})

	_, err := h.out.WriteString(term.Paint(h.out, b.String(), style.color) + "\n")
	return err
}

// WithAttrs implements slog.Handler.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		if s := h.format(a); s != "" {
			next.attrs = append(next.attrs, s)
		}
	}
	return next
}

// WithGroup implements slog.Handler. Groups nest.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix += name + "."
	return next
}

func (h *PrettyHandler) clone() *PrettyHandler {
	return &PrettyHandler{
		out:    h.out,
		level:  h.level,
		prefix: h.prefix,
		attrs:  append([]string(nil), h.attrs...),
	}
}

// format renders a as key=value under the current group path. Empty attributes render as "".
func (h *PrettyHandler) format(a slog.Attr) string {
	if a.Equal(slog.Attr{}) {
		return ""
	}
	return h.prefix + a.Key + "=" + a.Value.Resolve().String()
}
