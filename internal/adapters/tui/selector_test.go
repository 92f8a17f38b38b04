package tui_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mallard/internal/adapters/tui"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestSelector_SetMode(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := tui.NewSelector(mocks.NewMockRenderer(ctrl), mocks.NewMockRenderer(ctrl))

	assert.Equal(t, tui.ModeAuto, s.Mode())
	require.NoError(t, s.SetMode(tui.ModeLinear))
	assert.Equal(t, tui.ModeLinear, s.Mode())
	require.NoError(t, s.SetMode(""))
	assert.Equal(t, tui.ModeAuto, s.Mode())

	err := s.SetMode("fancy")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedContext)
}

func TestSelector_Routes(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("TERM", "xterm-256color")

	tests := []struct {
		name        string
		mode        string
		terminal    bool
		interactive bool
	}{
		{name: "tui", mode: tui.ModeTUI, terminal: false, interactive: true},
		{name: "linear", mode: tui.ModeLinear, terminal: true, interactive: false},
		{name: "auto on a terminal", mode: tui.ModeAuto, terminal: true, interactive: true},
		{name: "auto without a terminal", mode: tui.ModeAuto, terminal: false, interactive: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			interactive := mocks.NewMockRenderer(ctrl)
			linear := mocks.NewMockRenderer(ctrl)
			chosen := linear
			if tt.interactive {
				chosen = interactive
			}

			now := time.Now()
			gomock.InOrder(
				chosen.EXPECT().Start(gomock.Any()).Return(nil),
				chosen.EXPECT().OnPlanEmit([]string{"a"}, gomock.Any()),
				chosen.EXPECT().OnTargetStart("s1", "a", now),
				chosen.EXPECT().OnTargetLog("s1", []byte("x")),
				chosen.EXPECT().OnTargetComplete("s1", now, nil),
				chosen.EXPECT().Stop().Return(nil),
				chosen.EXPECT().Wait().Return(nil),
			)

			s := tui.NewSelector(interactive, linear).WithTerminal(tt.terminal)
			require.NoError(t, s.SetMode(tt.mode))
			require.NoError(t, s.Start(context.Background()))
			s.OnPlanEmit([]string{"a"}, nil)
			s.OnTargetStart("s1", "a", now)
			s.OnTargetLog("s1", []byte("x"))
			s.OnTargetComplete("s1", now, nil)
			require.NoError(t, s.Stop())
			require.NoError(t, s.Wait())
		})
	}
}

func TestSelector_AutoInCI(t *testing.T) {
	t.Setenv("CI", "true")
	ctrl := gomock.NewController(t)
	interactive := mocks.NewMockRenderer(ctrl)
	linear := mocks.NewMockRenderer(ctrl)
	linear.EXPECT().Start(gomock.Any()).Return(nil)

	s := tui.NewSelector(interactive, linear).WithTerminal(true)
	require.NoError(t, s.Start(context.Background()))
}

func newTestRenderer() *tui.Renderer {
	return tui.NewRenderer(io.Discard,
		tea.WithInput(strings.NewReader("")),
		tea.WithoutSignalHandler(),
		tea.WithoutRenderer(),
	)
}

func TestRenderer_Lifecycle(t *testing.T) {
	r := newTestRenderer()

	require.NoError(t, r.Start(context.Background()))
	require.Error(t, r.Start(context.Background()), "a running renderer cannot start twice")

	now := time.Now()
	r.OnPlanEmit([]string{"a", "b"}, map[string][]string{"b": {"a"}})
	r.OnTargetStart("s1", "a", now)
	r.OnTargetLog("s1", []byte("output\n"))
	r.OnTargetComplete("s1", now, nil)

	require.NoError(t, r.Stop())
	require.NoError(t, r.Wait())

	require.NoError(t, r.Start(context.Background()), "a stopped renderer can serve the next build")
	require.NoError(t, r.Stop())
	require.NoError(t, r.Wait())
}

func TestRenderer_EventsWithoutProgram(t *testing.T) {
	r := newTestRenderer()
	r.OnPlanEmit([]string{"a"}, nil)
	r.OnTargetStart("s1", "a", time.Now())
	require.NoError(t, r.Stop())
	require.NoError(t, r.Wait())
}
