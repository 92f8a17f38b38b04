// Package buildctx assembles the per-build session state shared by the engine.
package buildctx

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
)

// Backend runs a graph of outdated targets. Every strategy implements it, and the
// external strategy receives a caller-supplied one.
type Backend func(ctx context.Context, bc *Context, g *domain.Graph) error

// Options are the settings of one build as given on the command line.
// Zero values fall back to the plan file settings.
type Options struct {
	Targets          []string
	Strategy         string
	Jobs             int
	Retries          *int
	Backoff          string
	BackoffDelay     time.Duration
	Timeout          time.Duration
	Elapsed          time.Duration
	CPU              time.Duration
	KeepGoing        bool
	NoLockScopes     bool
	NoLockCache      bool
	GarbageCollect   bool
	SkipSafetyChecks bool
	Trigger          []string
	WorkDir          string
	SessionID        string
	External         Backend
}

// Deps are the collaborators a build talks to.
type Deps struct {
	Cache     ports.Cache
	Evaluator ports.Evaluator
	Files     ports.FileInspector
	Logger    ports.Logger
	Tracer    ports.Tracer
	Metrics   ports.Metrics
	Queue     ports.WorkQueue
}

// Context is the state of one build. It is mutated in place while the build runs
// and everything it owns is released by Teardown.
type Context struct {
	Plan *domain.Plan
	// Graph is the plan graph restricted to the target filter.
	Graph *domain.Graph
	// Filter lists the requested targets. Empty means every target.
	Filter []string

	TargetScope  *domain.Scope
	DynamicScope *domain.Scope
	ImportScope  *domain.Scope
	Tables       *domain.Tables
	Report       *domain.Report

	Cache     ports.Cache
	Evaluator ports.Evaluator
	Files     ports.FileInspector
	Logger    ports.Logger
	Tracer    ports.Tracer
	Metrics   ports.Metrics
	Queue     ports.WorkQueue

	Strategy       domain.Strategy
	Jobs           int
	Retries        int
	Backoff        Backoff
	Timeout        time.Duration
	Elapsed        time.Duration
	CPU            time.Duration
	Trigger        domain.Trigger
	KeepGoing      bool
	LockScopes     bool
	LockCache      bool
	GarbageCollect bool
	SkipChecks     bool

	WorkDir   string
	SessionID string
	External  Backend

	mu     sync.Mutex
	warned map[string]bool
}

// New assembles the context of a build of plan.
// Inconsistent settings are rejected with domain.ErrMalformedContext.
func New(plan *domain.Plan, deps Deps, opts Options) (*Context, error) {
	if err := validateDeps(plan, deps); err != nil {
		return nil, err
	}

	s := plan.Settings
	c := &Context{
		Plan:         plan,
		Filter:       opts.Targets,
		TargetScope:  domain.NewScope(domain.ScopeTargets),
		DynamicScope: domain.NewScope(domain.ScopeDynamic),
		ImportScope:  domain.NewScope(domain.ScopeImports),
		Tables:       domain.NewTables(),
		Report:       domain.NewReport(),
		Cache:        deps.Cache,
		Evaluator:    deps.Evaluator,
		Files:        deps.Files,
		Logger:       deps.Logger,
		Tracer:       deps.Tracer,
		Metrics:      deps.Metrics,
		Queue:        deps.Queue,
		Jobs:         pick(opts.Jobs, s.Jobs),
		Retries:      s.Retries,
		Timeout:      pick(opts.Timeout, s.Timeout),
		Elapsed:      pick(opts.Elapsed, s.Elapsed),
		CPU:          pick(opts.CPU, s.CPU),
		KeepGoing:    opts.KeepGoing || s.KeepGoing,
		LockScopes:   !(opts.NoLockScopes || s.NoLockScopes),
		LockCache:    !opts.NoLockCache,
		SkipChecks:   opts.SkipSafetyChecks,
		WorkDir:      opts.WorkDir,
		SessionID:    opts.SessionID,
		External:     opts.External,
		warned:       make(map[string]bool),
	}
	c.GarbageCollect = opts.GarbageCollect || s.GarbageCollect
	if opts.Retries != nil {
		c.Retries = *opts.Retries
	}
	if c.Tracer == nil {
		c.Tracer = noopTracer{}
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}

	if err := c.resolve(opts); err != nil {
		return nil, err
	}
	return c, nil
}

func validateDeps(plan *domain.Plan, deps Deps) error {
	missing := ""
	switch {
	case plan == nil:
		missing = "plan"
	case deps.Cache == nil:
		missing = "cache"
	case deps.Evaluator == nil:
		missing = "evaluator"
	case deps.Files == nil:
		missing = "files"
	case deps.Logger == nil:
		missing = "logger"
	}
	if missing != "" {
		return domain.Detail(domain.ErrMalformedContext, "missing", missing)
	}
	return nil
}

// resolve parses the symbolic settings and checks the numeric ones.
func (c *Context) resolve(opts Options) error {
	s := c.Plan.Settings

	strategy, err := domain.ParseStrategy(pick(opts.Strategy, s.Strategy))
	if err != nil {
		return err
	}
	c.Strategy = strategy

	switch {
	case c.Jobs < 0:
		return domain.Detail(domain.ErrMalformedContext, "jobs", c.Jobs)
	case c.Jobs == 0:
		c.Jobs = 1
	}
	if c.Retries < 0 {
		return domain.Detail(domain.ErrMalformedContext, "retries", c.Retries)
	}
	for field, d := range map[string]time.Duration{"timeout": c.Timeout, "elapsed": c.Elapsed, "cpu": c.CPU} {
		if d < 0 {
			return domain.Detail(domain.ErrMalformedContext, field, d.String())
		}
	}

	switch c.Strategy {
	case domain.StrategyExternal:
		if c.External == nil {
			return domain.ErrNoExternalBackend
		}
	case domain.StrategyDistributed:
		if c.Queue == nil {
			return domain.Detail(domain.ErrMalformedContext, "missing", "work queue")
		}
	}

	backoff, err := ParseBackoff(pick(opts.Backoff, s.Backoff), pick(opts.BackoffDelay, s.BackoffDelay))
	if err != nil {
		return err
	}
	c.Backoff = backoff

	trigger := opts.Trigger
	if len(trigger) == 0 {
		trigger = s.Trigger
	}
	if c.Trigger, err = domain.ParseTrigger(trigger); err != nil {
		return err
	}

	if c.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return zerr.Wrap(domain.ErrMalformedContext, err.Error())
		}
		c.WorkDir = wd
	}
	if c.WorkDir, err = filepath.Abs(c.WorkDir); err != nil {
		return zerr.Wrap(domain.ErrMalformedContext, err.Error())
	}

	full, err := c.Plan.Graph()
	if err != nil {
		return err
	}
	if c.Graph, err = full.Filter(c.Filter); err != nil {
		return err
	}
	return nil
}

// TriggerFor returns the trigger deciding whether t is stale.
func (c *Context) TriggerFor(t *domain.Target) domain.Trigger {
	if t.Trigger != nil {
		return t.Trigger
	}
	return c.Trigger
}

// RetriesFor returns how many times t is retried after a failed attempt.
func (c *Context) RetriesFor(t *domain.Target) int {
	if t.Retries != nil {
		return max(*t.Retries, 0)
	}
	return c.Retries
}

// AttemptTimeout is the wall clock budget of a single attempt. Zero means unbounded.
func (c *Context) AttemptTimeout() time.Duration {
	switch {
	case c.Timeout == 0:
		return c.Elapsed
	case c.Elapsed == 0:
		return c.Timeout
	default:
		return min(c.Timeout, c.Elapsed)
	}
}

// ResolvePath maps a declared file dependency onto the file system.
// URLs and absolute paths are returned unchanged; relative paths are taken from the plan root.
func (c *Context) ResolvePath(path string) string {
	if c.Files.IsRemote(path) || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Plan.Root, path)
}

// WarnOnce logs msg the first time it is called with key during this build.
// It reports whether the warning was emitted.
func (c *Context) WarnOnce(key, msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warned[key] {
		return false
	}
	c.warned[key] = true
	c.Logger.Warn(msg)
	return true
}

// Acquire takes the cache lock for this build unless cache locking is disabled.
func (c *Context) Acquire(ctx context.Context) error {
	if !c.LockCache {
		return nil
	}
	return c.Cache.Lock(ctx, c.SessionID)
}

// LockTargetScopes locks the scopes commands may write to, unless scope locking is disabled.
func (c *Context) LockTargetScopes() {
	if c.LockScopes {
		c.TargetScope.Lock()
		c.DynamicScope.Lock()
		return
	}
	c.TargetScope.Unlock()
	c.DynamicScope.Unlock()
}

func pick[T comparable](override, fallback T) T {
	var zero T
	if override != zero {
		return override
	}
	return fallback
}
