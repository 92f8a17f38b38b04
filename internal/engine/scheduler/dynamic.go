package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/engine/outdated"
	"go.trai.ch/zerr"
)

// SubTargetName names the sub-target built for one element of a dynamic target.
func SubTargetName(parent, elementHash string) string {
	return parent + "_" + elementHash
}

// buildDynamic expands the list bound to t.MapOver into one sub-target per element.
// Each sub-target is fingerprinted on its own element, so elements whose value
// is unchanged are reused from the cache. The parent value is the list of sub-values.
func (r *Runner) buildDynamic(ctx context.Context, t *domain.Target, inputs map[string]any) (int, error) {
	parent := t.Name.String()
	mapped := t.MapOver.String()
	elements, ok := inputs[mapped].([]any)
	if !ok {
		return 0, zerr.With(zerr.With(domain.Detail(domain.ErrMapOverNotList, "target", parent), "map_over", mapped),
			"type", fmt.Sprintf("%T", inputs[mapped]))
	}

	fp, err := outdated.Fingerprint(ctx, r.bc, t)
	if err != nil {
		return 0, err
	}
	base := *fp
	base.Dependencies = maps.Clone(fp.Dependencies)
	delete(base.Dependencies, mapped)

	values := make([]any, len(elements))
	subs := make([]string, 0, len(elements))
	seen := make(map[string]bool, len(elements))
	total := 0
	for i, element := range elements {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		elementHash, err := r.bc.Cache.HashValue(element)
		if err != nil {
			return total, err
		}
		sub := SubTargetName(parent, elementHash)
		if !seen[sub] {
			seen[sub] = true
			subs = append(subs, sub)
		}

		subFP := base
		subFP.Dependencies = maps.Clone(base.Dependencies)
		subFP.Element = elementHash

		value, attempts, err := r.buildElement(ctx, t, sub, element, inputs, &subFP)
		total += attempts
		if err != nil {
			return total, zerr.With(err, "sub_target", sub)
		}
		values[i] = value
	}

	r.bc.Tables.Register(parent, subs)
	if err := r.commit(parent, values, fp); err != nil {
		return total, err
	}
	r.bc.TargetScope.Commit(parent, values)
	return total, nil
}

// buildElement returns the value of one sub-target, reusing the cached one when its
// fingerprint still holds.
func (r *Runner) buildElement(
	ctx context.Context,
	t *domain.Target,
	sub string,
	element any,
	inputs map[string]any,
	fp *domain.Fingerprint,
) (any, int, error) {
	if value, ok := r.cachedElement(t, sub, fp); ok {
		r.bc.DynamicScope.Commit(sub, value)
		return value, 0, nil
	}

	in := maps.Clone(inputs)
	in[t.MapOver.String()] = element
	inv := r.invocation(t, sub, in)
	inv.Scope = r.bc.DynamicScope

	out, attempts, err := r.evaluateWithRetries(ctx, t, inv)
	if err != nil {
		return nil, attempts, err
	}
	if err := r.commit(sub, out.Value, fp); err != nil {
		return nil, attempts, err
	}
	r.bc.DynamicScope.Commit(sub, out.Value)
	return out.Value, attempts, nil
}

func (r *Runner) cachedElement(t *domain.Target, sub string, current *domain.Fingerprint) (any, bool) {
	var previous domain.Fingerprint
	if err := r.bc.Cache.Load(sub, domain.NamespaceFingerprints, &previous); err != nil {
		return nil, false
	}
	hash, err := r.bc.Cache.Hash(sub, domain.NamespaceValues)
	if err != nil || hash != previous.Value {
		return nil, false
	}
	if r.bc.TriggerFor(t)(&previous, current) {
		return nil, false
	}
	value, err := r.bc.Cache.Get(sub, domain.NamespaceValues)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			r.bc.Logger.Debug("discarding cached value of " + sub + ": " + err.Error())
		}
		return nil, false
	}
	return value, true
}
