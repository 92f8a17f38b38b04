// Package scheduler runs the outdated targets of a build.
package scheduler

import (
	"context"
	"errors"
	"strings"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/engine/buildctx"
)

// Backend runs a graph of outdated targets. It is the single entry point every strategy implements.
type Backend = buildctx.Backend

const externalWarning = "external strategy: retries, time limits and keep-going are handled by the external backend"

// Dispatcher runs outdated graphs with the backend selected by the build's strategy.
type Dispatcher struct {
	bc      *buildctx.Context
	backend Backend
}

// New creates a dispatcher for bc. The backend is resolved once from bc.Strategy.
func New(bc *buildctx.Context) *Dispatcher {
	return &Dispatcher{bc: bc, backend: Resolve(bc.Strategy, bc.External)}
}

// Resolve returns the backend implementing strategy.
func Resolve(strategy domain.Strategy, external Backend) Backend {
	switch strategy {
	case domain.StrategyPool:
		return runPool
	case domain.StrategyDistributed:
		return runDistributed
	case domain.StrategyExternal:
		return runExternal(external)
	case domain.StrategySequential:
		return runSequential
	default:
		return runSequential
	}
}

// Run builds every target of g. Targets that never started are reported cancelled.
// The returned error summarizes failed, skipped and cancelled targets.
func (d *Dispatcher) Run(ctx context.Context, g *domain.Graph) error {
	bc := d.bc
	bc.Tracer.EmitPlan(ctx, g.Names(), planDeps(g))
	bc.Metrics.SetOutdated(g.TargetCount())
	bc.LockTargetScopes()

	err := d.backend(ctx, bc, g)

	runner := NewRunner(bc)
	for t := range g.Walk() {
		if _, ok := bc.Report.Status(t.Name.String()); !ok {
			runner.Record(t.Name.String(), domain.StatusCancelled, 0, nil)
		}
	}
	return errors.Join(err, bc.Report.Err())
}

func planDeps(g *domain.Graph) map[string][]string {
	deps := make(map[string][]string, g.TargetCount())
	for t := range g.Walk() {
		deps[t.Name.String()] = domain.Strings(g.Upstream(t.Name))
	}
	return deps
}

// runSequential builds one target at a time in topological order.
func runSequential(ctx context.Context, bc *buildctx.Context, g *domain.Graph) error {
	runner := NewRunner(bc)
	blocked := make(map[domain.InternedString]bool)
	for t := range g.Walk() {
		if ctx.Err() != nil {
			break
		}
		if blocked[t.Name] {
			continue
		}
		err := runner.Build(ctx, &t)
		if err == nil {
			continue
		}
		if ctx.Err() != nil || !continueAfter(bc, err) {
			break
		}
		for _, name := range skipDownstream(runner, g, t.Name, err) {
			blocked[name] = true
		}
	}
	return ctx.Err()
}

// runExternal hands the graph to a caller supplied backend.
func runExternal(backend Backend) Backend {
	return func(ctx context.Context, bc *buildctx.Context, g *domain.Graph) error {
		bc.WarnOnce("external-backend", externalWarning)
		return backend(ctx, bc, g)
	}
}

// continueAfter reports whether the build goes on after a target failed with err.
// Infrastructure failures stop the build even in keep-going mode.
func continueAfter(bc *buildctx.Context, err error) bool {
	return bc.KeepGoing && domain.Classify(err) != domain.ClassInfrastructure
}

// skipDownstream marks every transitive dependent of failed as skipped.
func skipDownstream(runner *Runner, g *domain.Graph, failed domain.InternedString, cause error) []domain.InternedString {
	downstream := g.Downstream(failed)
	for _, name := range downstream {
		runner.Record(name.String(), domain.StatusSkipped, 0, domain.Detail(domain.ErrTargetFailed, "upstream", failed.String()))
	}
	if len(downstream) > 0 {
		runner.bc.Logger.Warn("skipping " + strings.Join(domain.Strings(downstream), ", ") +
			" after " + failed.String() + " failed: " + cause.Error())
	}
	return downstream
}
