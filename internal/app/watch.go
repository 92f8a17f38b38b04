package app

import (
	"context"
	"fmt"
	"time"

	"go.trai.ch/mallard/internal/adapters/watcher" //nolint:depguard // Wired in app layer
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// WatchOptions configure a watch session.
type WatchOptions struct {
	MakeOptions
	// Window is how long the plan root must be quiet before a rebuild.
	Window time.Duration
}

// Watch builds once and then again whenever files below the plan root change,
// until ctx is cancelled. Failed builds are logged and do not end the session.
func (a *App) Watch(ctx context.Context, cwd string, opts WatchOptions) error {
	if a.watcher == nil {
		return zerr.New("file watching is not available")
	}
	plan, err := a.loader.Load(cwd)
	if err != nil {
		return zerr.Wrap(err, "failed to load plan")
	}
	if opts.Window <= 0 {
		opts.Window = watcher.DefaultWindow
	}

	if err := a.watcher.Start(ctx, plan.Root); err != nil {
		return err
	}
	defer func() { _ = a.watcher.Stop() }()

	changes := make(chan []string, 1)
	debouncer := watcher.NewDebouncer(opts.Window, func(paths []string) {
		select {
		case changes <- paths:
		case <-ctx.Done():
		}
	})
	defer debouncer.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for ev := range a.watcher.Events() {
			a.logger.Debug(ev.Operation.String() + " " + ev.Path)
			debouncer.Add(ev.Path)
		}
		return nil
	})
	g.Go(func() error {
		a.rebuild(gctx, cwd, opts.MakeOptions)
		for {
			select {
			case <-gctx.Done():
				_ = a.watcher.Stop()
				return nil
			case paths := <-changes:
				a.logger.Info(fmt.Sprintf("%d file(s) changed, rebuilding", len(paths)))
				a.rebuild(gctx, cwd, opts.MakeOptions)
			}
		}
	})
	return g.Wait()
}

func (a *App) rebuild(ctx context.Context, cwd string, opts MakeOptions) {
	opts.SessionID = ""
	if _, err := a.Make(ctx, cwd, opts); err != nil && ctx.Err() == nil {
		a.logger.Error(err)
	}
}
