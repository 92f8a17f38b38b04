// Package app implements the application layer for mallard.
package app

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"go.trai.ch/mallard/internal/adapters/remote"  //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/adapters/session" //nolint:depguard // Wired in app layer
	"go.trai.ch/mallard/internal/build"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/mallard/internal/engine/buildctx"
	"go.trai.ch/mallard/internal/engine/outdated"
	"go.trai.ch/mallard/internal/engine/preflight"
	"go.trai.ch/mallard/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// Dialer connects to the remote workers of a distributed build.
type Dialer func(addrs []string) (ports.WorkQueue, error)

// RecorderFactory returns the session recorder writing to cache.
type RecorderFactory func(cache ports.Cache) ports.SessionRecorder

// App represents the main application logic.
type App struct {
	loader    ports.PlanLoader
	caches    ports.CacheOpener
	evaluator ports.Evaluator
	files     ports.FileInspector
	logger    ports.Logger
	tracer    ports.Tracer
	metrics   ports.Metrics
	renderer  ports.Renderer
	watcher   ports.Watcher
	dial      Dialer
	recorder  RecorderFactory
}

// New creates a new App instance.
// The tracer, metrics, renderer and watcher are optional.
func New(
	loader ports.PlanLoader,
	caches ports.CacheOpener,
	evaluator ports.Evaluator,
	files ports.FileInspector,
	log ports.Logger,
	tracer ports.Tracer,
	metrics ports.Metrics,
	renderer ports.Renderer,
	watcher ports.Watcher,
) *App {
	return &App{
		loader:    loader,
		caches:    caches,
		evaluator: evaluator,
		files:     files,
		logger:    log,
		tracer:    tracer,
		metrics:   metrics,
		renderer:  renderer,
		watcher:   watcher,
		dial: func(addrs []string) (ports.WorkQueue, error) {
			return remote.Dial(addrs)
		},
		recorder: func(cache ports.Cache) ports.SessionRecorder {
			return session.NewRecorder(cache)
		},
	}
}

// WithDialer replaces how distributed builds reach their workers.
func (a *App) WithDialer(d Dialer) *App {
	a.dial = d
	return a
}

// WithRecorder replaces how builds record sessions and dump caches.
func (a *App) WithRecorder(f RecorderFactory) *App {
	a.recorder = f
	return a
}

// MakeOptions configure a build.
type MakeOptions struct {
	buildctx.Options

	// CacheDir overrides the cache location. Relative paths are taken from the plan root.
	CacheDir string
	// Workers overrides the worker addresses of the plan.
	Workers []string
	// MetricsFile receives the build metrics in the Prometheus text format.
	MetricsFile string
	// Dump receives the cache contents of DumpNamespaces after the build.
	Dump           io.Writer
	DumpNamespaces []domain.Namespace
}

// Make brings the targets of the plan found from cwd up to date.
// The report is returned whenever the build got as far as scheduling, failed or not.
//
//nolint:cyclop // orchestration function
func (a *App) Make(ctx context.Context, cwd string, opts MakeOptions) (report *domain.Report, err error) {
	started := time.Now()

	plan, err := a.loader.Load(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load plan")
	}
	if opts.SessionID == "" {
		opts.SessionID = session.NewID()
	}
	if opts.WorkDir == "" {
		opts.WorkDir = cwd
	}

	bc, closeBuild, err := a.open(plan, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, closeBuild(ctx))
	}()

	if err := preflight.Run(ctx, bc); err != nil {
		return nil, err
	}
	if err := bc.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := a.prepare(ctx, bc, true); err != nil {
		return nil, err
	}

	stale, err := outdated.Compute(ctx, bc)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to compute outdated targets")
	}
	markUpToDate(bc, stale)

	var buildErr error
	if stale.Empty() {
		a.logger.Info("nothing to do")
	} else {
		buildErr = a.dispatch(ctx, bc, stale)
	}

	var errs []error
	errs = append(errs, buildErr)
	errs = append(errs, a.record(ctx, bc, started))
	if a.metrics != nil {
		errs = append(errs, a.metrics.Write(opts.MetricsFile))
	}
	if opts.Dump != nil {
		errs = append(errs, a.recorder(bc.Cache).Dump(ctx, opts.Dump, opts.DumpNamespaces))
	}
	return bc.Report, errors.Join(errs...)
}

// Outdated lists the targets a build from cwd would run, in build order.
// Prework and imports are evaluated since import values take part in fingerprints,
// but nothing is written to the cache.
func (a *App) Outdated(ctx context.Context, cwd string, opts MakeOptions) (names []string, err error) {
	plan, err := a.loader.Load(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load plan")
	}
	if opts.WorkDir == "" {
		opts.WorkDir = cwd
	}
	opts.NoLockCache = true
	opts.GarbageCollect = false
	if opts.Strategy == "" || opts.Strategy == domain.StrategyExternal.String() {
		opts.Strategy = domain.StrategySequential.String()
	}

	bc, closeBuild, err := a.open(plan, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, closeBuild(ctx))
	}()

	if err := preflight.CacheLocation(bc); err != nil {
		return nil, err
	}
	if err := a.prepare(ctx, bc, false); err != nil {
		return nil, err
	}
	stale, err := outdated.Compute(ctx, bc)
	if err != nil {
		return nil, err
	}
	return stale.Names(), nil
}

// open assembles the build context of plan. The returned function closes the
// work queue and tears the context down.
func (a *App) open(plan *domain.Plan, opts MakeOptions) (*buildctx.Context, func(context.Context) error, error) {
	cache, err := a.caches.Open(cacheDir(plan, opts.CacheDir))
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to open cache")
	}

	deps := buildctx.Deps{
		Cache:     cache,
		Evaluator: a.evaluator,
		Files:     a.files,
		Logger:    a.logger,
	}
	if a.tracer != nil {
		deps.Tracer = a.tracer
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = plan.Settings.Strategy
	}
	if strategy == domain.StrategyDistributed.String() {
		workers := opts.Workers
		if len(workers) == 0 {
			workers = plan.Settings.Workers
		}
		queue, err := a.dial(workers)
		if err != nil {
			return nil, nil, err
		}
		deps.Queue = queue
	}

	bc, err := buildctx.New(plan, deps, opts.Options)
	if err != nil {
		if deps.Queue != nil {
			_ = deps.Queue.Close()
		}
		return nil, nil, err
	}

	closeBuild := func(ctx context.Context) error {
		var errs []error
		if deps.Queue != nil {
			errs = append(errs, deps.Queue.Close())
		}
		errs = append(errs, bc.Teardown(ctx))
		return errors.Join(errs...)
	}
	return bc, closeBuild, nil
}

// dispatch runs the outdated graph with the renderer attached.
func (a *App) dispatch(ctx context.Context, bc *buildctx.Context, g *domain.Graph) error {
	if a.renderer != nil {
		if err := a.renderer.Start(ctx); err != nil {
			return zerr.Wrap(err, "failed to start renderer")
		}
		defer func() {
			_ = a.renderer.Stop()
			_ = a.renderer.Wait()
		}()
	}
	return scheduler.New(bc).Run(ctx, g)
}

// record persists the session snapshot of the build.
func (a *App) record(ctx context.Context, bc *buildctx.Context, started time.Time) error {
	r := bc.Report
	s := &domain.Session{
		ID:        bc.SessionID,
		StartedAt: started.UTC(),
		EndedAt:   time.Now().UTC(),
		Version:   build.Version,
		Root:      bc.Plan.Root,
		Strategy:  bc.Strategy.String(),
		Jobs:      bc.Jobs,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
		Cancelled: r.Cancelled,
		UpToDate:  r.UpToDate,
	}
	session.Environment(s)
	return a.recorder(bc.Cache).Record(context.WithoutCancel(ctx), s)
}

// markUpToDate reports every selected target outside the stale graph as up to date.
func markUpToDate(bc *buildctx.Context, stale *domain.Graph) {
	runner := scheduler.NewRunner(bc)
	for t := range bc.Graph.Walk() {
		if !stale.Has(t.Name) {
			runner.Record(t.Name.String(), domain.StatusUpToDate, 0, nil)
		}
	}
}

// cacheDir resolves where the cache of plan lives.
func cacheDir(plan *domain.Plan, override string) string {
	dir := override
	if dir == "" {
		dir = domain.DefaultCachePath()
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(plan.Root, dir)
}
