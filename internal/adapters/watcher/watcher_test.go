package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mallard/internal/adapters/watcher"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/mallard/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func next(t *testing.T, events <-chan ports.WatchEvent) ports.WatchEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a file event")
		return ports.WatchEvent{}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, domain.MallardDirName, domain.CacheDirName), 0o750))

	w, err := watcher.NewWatcher(logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, root))
	defer func() { _ = w.Stop() }()

	events := make(chan ports.WatchEvent, 100)
	go func() {
		for ev := range w.Events() {
			events <- ev
		}
		close(events)
	}()

	// Writes to the workspace are not reported.
	require.NoError(t, os.WriteFile(filepath.Join(root, domain.MallardDirName, domain.CacheDirName, "x"), []byte("1"), 0o600))

	data := filepath.Join(root, "data.csv")
	require.NoError(t, os.WriteFile(data, []byte("a,b\n"), 0o600))

	ev := next(t, events)
	assert.Equal(t, data, ev.Path)
	assert.Contains(t, []ports.WatchOp{ports.OpCreate, ports.OpWrite}, ev.Operation)
}
