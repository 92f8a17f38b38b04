// Package watcher turns file system changes under a plan root into rebuild requests.
package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Watcher = (*Watcher)(nil)

// skipDirs are never watched. The workspace holds the cache, which every build writes to.
var skipDirs = map[string]bool{
	".git":                true,
	".jj":                 true,
	"node_modules":        true,
	domain.MallardDirName: true,
}

const eventBuffer = 100

// Watcher implements ports.Watcher with fsnotify.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    ports.Logger
	events    chan ports.WatchEvent
}

// NewWatcher creates a watcher. Nothing is watched until Start.
func NewWatcher(logger ports.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create file watcher")
	}
	return &Watcher{
		fsWatcher: fw,
		logger:    logger,
		events:    make(chan ports.WatchEvent, eventBuffer),
	}, nil
}

// Start watches every directory below root and forwards events until ctx is done.
func (w *Watcher) Start(ctx context.Context, root string) error {
	for dir := range dirs(root) {
		if err := w.fsWatcher.Add(dir); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to watch directory"), "dir", dir)
		}
	}
	go w.loop(ctx)
	return nil
}

// Stop releases the underlying watcher. The event stream ends shortly after.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// Events yields events until the watcher stops.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for ev := range w.events {
			if !yield(ev) {
				return
			}
		}
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			ev, ok := convert(raw)
			if !ok {
				continue
			}
			select {
			case w.events <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Operation == ports.OpCreate {
				w.addIfDir(ev.Path)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher: " + err.Error())
		}
	}
}

// addIfDir starts watching a directory created after Start.
func (w *Watcher) addIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || skipDirs[info.Name()] {
		return
	}
	for dir := range dirs(path) {
		if err := w.fsWatcher.Add(dir); err != nil {
			w.logger.Debug("file watcher: cannot watch " + dir + ": " + err.Error())
		}
	}
}

// dirs yields root and every directory below it that is not skipped.
func dirs(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // Unreadable directories are not watched
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func convert(ev fsnotify.Event) (ports.WatchEvent, bool) {
	var op ports.WatchOp
	switch {
	case ev.Has(fsnotify.Write):
		op = ports.OpWrite
	case ev.Has(fsnotify.Create):
		op = ports.OpCreate
	case ev.Has(fsnotify.Remove):
		op = ports.OpRemove
	case ev.Has(fsnotify.Rename):
		op = ports.OpRename
	default:
		return ports.WatchEvent{}, false
	}
	return ports.WatchEvent{Path: ev.Name, Operation: op}, true
}
