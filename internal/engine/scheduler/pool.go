package scheduler

import (
	"context"
	"errors"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/engine/buildctx"
)

// runPool builds eligible targets on bc.Jobs local workers.
func runPool(ctx context.Context, bc *buildctx.Context, g *domain.Graph) error {
	return newRunState(ctx, bc, g, NewRunner(bc)).runExecutionLoop()
}

// runDistributed is the pool loop with every attempt submitted to a remote worker.
func runDistributed(ctx context.Context, bc *buildctx.Context, g *domain.Graph) error {
	return newRunState(ctx, bc, g, NewRemoteRunner(bc)).runExecutionLoop()
}

type result struct {
	target domain.InternedString
	err    error
}

type runState struct {
	bc        *buildctx.Context
	graph     *domain.Graph
	runner    *Runner
	inDegree  map[domain.InternedString]int
	targets   map[domain.InternedString]domain.Target
	ready     []domain.InternedString
	active    int
	slots     int
	resultsCh chan result

	parent context.Context
	ctx    context.Context
	cancel context.CancelCauseFunc
}

func newRunState(ctx context.Context, bc *buildctx.Context, g *domain.Graph, runner *Runner) *runState {
	inDegree := make(map[domain.InternedString]int, g.TargetCount())
	targets := make(map[domain.InternedString]domain.Target, g.TargetCount())
	var ready []domain.InternedString
	for t := range g.Walk() {
		targets[t.Name] = t
		degree := len(g.Upstream(t.Name))
		inDegree[t.Name] = degree
		if degree == 0 {
			ready = append(ready, t.Name)
		}
	}

	buildCtx, cancel := context.WithCancelCause(ctx)
	return &runState{
		bc:        bc,
		graph:     g,
		runner:    runner,
		inDegree:  inDegree,
		targets:   targets,
		ready:     ready,
		slots:     max(bc.Jobs, 1),
		resultsCh: make(chan result, max(bc.Jobs, 1)),
		parent:    ctx,
		ctx:       buildCtx,
		cancel:    cancel,
	}
}

func (state *runState) runExecutionLoop() error {
	defer state.cancel(nil)

	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
		}
	}

	// drain builds still in flight after a cancellation
	for state.active > 0 {
		state.handleResult(<-state.resultsCh)
	}
	return state.parent.Err()
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.slots && state.ctx.Err() == nil {
		name := state.ready[0]
		state.ready = state.ready[1:]

		state.active++
		t := state.targets[name]
		go state.executeTarget(&t)
	}
}

func (state *runState) executeTarget(t *domain.Target) {
	err := state.runner.Build(state.ctx, t)
	state.resultsCh <- result{target: t.Name, err: err}
}

func (state *runState) handleResult(res result) {
	state.active--

	if res.err == nil {
		state.release(res.target)
		return
	}
	if errors.Is(res.err, context.Canceled) && state.ctx.Err() != nil {
		return
	}
	if state.ctx.Err() == nil && continueAfter(state.bc, res.err) {
		skipDownstream(state.runner, state.graph, res.target, res.err)
		return
	}
	state.cancel(res.err)
}

// release makes the dependents of a committed target eligible once all their dependencies committed.
func (state *runState) release(name domain.InternedString) {
	for _, dep := range state.graph.Dependents(name) {
		if _, ok := state.targets[dep]; !ok {
			continue
		}
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 {
			state.ready = append(state.ready, dep)
		}
	}
}
