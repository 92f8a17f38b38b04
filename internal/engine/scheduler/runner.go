package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/mallard/internal/engine/buildctx"
	"go.trai.ch/mallard/internal/engine/outdated"
	"go.trai.ch/zerr"
)

// EvaluateFunc runs one attempt of an invocation, locally or on a worker.
type EvaluateFunc func(ctx context.Context, inv *domain.Invocation) (domain.Outcome, error)

// Runner builds single targets. It owns the attempt loop and the commit
// sequence that makes a target's value visible to its dependents.
type Runner struct {
	bc       *buildctx.Context
	evaluate EvaluateFunc
}

// NewRunner creates a runner evaluating commands with bc.Evaluator.
func NewRunner(bc *buildctx.Context) *Runner {
	return &Runner{bc: bc, evaluate: bc.Evaluator.Evaluate}
}

// NewRemoteRunner creates a runner submitting commands to bc.Queue.
func NewRemoteRunner(bc *buildctx.Context) *Runner {
	return &Runner{bc: bc, evaluate: bc.Queue.Submit}
}

// Build runs t to completion. On success the value, then the fingerprint are
// written to the cache before the value is committed to the targets scope.
// A target whose attempts are exhausted is recorded as failed and the returned
// error matches domain.ErrTargetFailed.
func (r *Runner) Build(ctx context.Context, t *domain.Target) error {
	name := t.Name.String()
	start := time.Now()
	r.progress(name, domain.StatusRunning, 0, nil)

	attempts, err := r.build(ctx, t)
	switch {
	case err == nil:
		r.Record(name, domain.StatusDone, attempts, nil)
		r.bc.Metrics.ObserveTarget(string(domain.StatusDone), time.Since(start))
		r.bc.Logger.Info("built " + name)
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		r.Record(name, domain.StatusCancelled, attempts, nil)
		r.bc.Metrics.ObserveTarget(string(domain.StatusCancelled), time.Since(start))
		return err
	default:
		r.Record(name, domain.StatusFailed, attempts, err)
		r.bc.Metrics.ObserveTarget(string(domain.StatusFailed), time.Since(start))
		failed := zerr.With(domain.Detail(domain.ErrTargetFailed, "target", name), "attempts", attempts)
		return errors.Join(failed, err)
	}
}

func (r *Runner) build(ctx context.Context, t *domain.Target) (int, error) {
	inputs, err := r.inputs(t)
	if err != nil {
		return 0, err
	}

	if t.Dynamic() {
		return r.buildDynamic(ctx, t, inputs)
	}

	out, attempts, err := r.evaluateWithRetries(ctx, t, r.invocation(t, t.Name.String(), inputs))
	if err != nil {
		return attempts, err
	}

	fp, err := outdated.Fingerprint(ctx, r.bc, t)
	if err != nil {
		return attempts, err
	}
	if err := r.commit(t.Name.String(), out.Value, fp); err != nil {
		return attempts, err
	}
	r.bc.TargetScope.Commit(t.Name.String(), out.Value)
	return attempts, nil
}

// commit stores value and the fingerprint it was built from.
func (r *Runner) commit(name string, value any, fp *domain.Fingerprint) error {
	hash, err := r.bc.Cache.Set(name, value, domain.NamespaceValues)
	if err != nil {
		return err
	}
	fp.Value = hash
	if _, err := r.bc.Cache.Set(name, fp, domain.NamespaceFingerprints); err != nil {
		return err
	}
	return nil
}

// inputs gathers the prework bindings and the values of t's dependencies.
// Dependencies that were up to date are loaded from the cache and committed
// to the targets scope on first use.
func (r *Runner) inputs(t *domain.Target) (map[string]any, error) {
	in := make(map[string]any, len(t.Dependencies)+len(r.bc.Plan.Prework))
	for _, p := range r.bc.Plan.Prework {
		if v, ok := r.bc.TargetScope.Get(p.Name); ok {
			in[p.Name] = v
		}
	}

	for _, dep := range t.Dependencies {
		name := dep.String()
		if r.bc.Graph.IsImport(dep) {
			if v, ok := r.bc.ImportScope.Get(name); ok {
				in[name] = v
				continue
			}
			v, err := r.bc.Cache.Get(name, domain.NamespaceImports)
			if err != nil {
				return nil, zerr.With(zerr.Wrap(err, "import not loaded"), "import", name)
			}
			r.bc.ImportScope.Commit(name, v)
			in[name] = v
			continue
		}

		if v, ok := r.bc.TargetScope.Get(name); ok {
			in[name] = v
			continue
		}
		v, err := r.bc.Cache.Get(name, domain.NamespaceValues)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "dependency has no value"), "dependency", name)
		}
		r.bc.TargetScope.Commit(name, v)
		in[name] = v
	}
	return in, nil
}

func (r *Runner) invocation(t *domain.Target, name string, inputs map[string]any) *domain.Invocation {
	lang := t.Language
	if lang == "" {
		lang = r.bc.Plan.Language
	}
	return &domain.Invocation{
		Name:     name,
		Command:  t.Command,
		Language: lang,
		Inputs:   inputs,
		Dir:      r.bc.Plan.Root,
		Scope:    r.bc.TargetScope,
	}
}

// evaluateWithRetries runs up to 1 + retries attempts, sleeping the backoff between them.
// Infrastructure failures end the loop immediately.
func (r *Runner) evaluateWithRetries(
	ctx context.Context,
	t *domain.Target,
	inv *domain.Invocation,
) (domain.Outcome, int, error) {
	attempts := 1 + r.bc.RetriesFor(t)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, r.bc.Backoff(attempt-1)); err != nil {
				return domain.Outcome{}, attempt - 1, err
			}
		}

		inv.Attempt = attempt
		out, err := r.attempt(ctx, inv)
		r.bc.Metrics.ObserveAttempt(err != nil)
		if err == nil {
			return out, attempt, nil
		}
		if ctx.Err() != nil {
			return domain.Outcome{}, attempt, ctx.Err()
		}
		lastErr = err
		if !domain.Retryable(err) {
			return domain.Outcome{}, attempt, err
		}
		if attempt < attempts {
			r.bc.Logger.Warn(fmt.Sprintf("%s: attempt %d of %d failed, retrying: %v", inv.Name, attempt, attempts, err))
		}
	}
	return domain.Outcome{}, attempts, lastErr
}

// attempt evaluates inv once under the elapsed and cpu caps.
func (r *Runner) attempt(ctx context.Context, inv *domain.Invocation) (domain.Outcome, error) {
	spanCtx, span := r.bc.Tracer.Start(ctx, inv.Name, ports.WithAttempt(inv.Attempt))
	defer span.End()

	attemptCtx := spanCtx
	limit := r.bc.AttemptTimeout()
	if limit > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(spanCtx, limit)
		defer cancel()
	}

	out, err := r.evaluate(attemptCtx, inv)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		err = zerr.With(domain.Detail(domain.ErrResourceCapExceeded, "elapsed", limit.String()), "target", inv.Name)
	}
	if err == nil && r.bc.CPU > 0 && out.CPU > r.bc.CPU {
		err = zerr.With(domain.Detail(domain.ErrResourceCapExceeded, "cpu", r.bc.CPU.String()), "used", out.CPU.String())
	}
	if err != nil {
		span.RecordError(err)
		return domain.Outcome{}, err
	}
	span.SetAttribute("mallard.attempt", inv.Attempt)
	return out, nil
}

// Record files name under status in the build report and the progress namespace.
func (r *Runner) Record(name string, status domain.Status, attempts int, cause error) {
	r.bc.Report.Record(name, status, cause)
	r.progress(name, status, attempts, cause)
}

func (r *Runner) progress(name string, status domain.Status, attempts int, cause error) {
	p := domain.Progress{Status: status, Attempts: attempts, UpdatedAt: time.Now().UnixNano()}
	if cause != nil {
		p.Error = cause.Error()
	}
	if _, err := r.bc.Cache.Set(name, p, domain.NamespaceProgress); err != nil {
		r.bc.Logger.Warn("failed to record progress of " + name + ": " + err.Error())
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
