package outdated

import (
	"context"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/engine/buildctx"
)

// Compute returns the subgraph of bc.Graph that must be rebuilt.
//
// Targets are visited in topological order. A target is stale when one of its
// dependencies is stale, when its value or fingerprint is missing or unreadable,
// when its stored value no longer matches the fingerprint, or when its trigger fires.
func Compute(ctx context.Context, bc *buildctx.Context) (*domain.Graph, error) {
	stale := make(map[domain.InternedString]bool)

	for t := range bc.Graph.Walk() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		isStale, err := staleTarget(ctx, bc, &t, stale)
		if err != nil {
			return nil, err
		}
		if isStale {
			stale[t.Name] = true
		}
	}
	return bc.Graph.Induce(stale), nil
}

func staleTarget(
	ctx context.Context,
	bc *buildctx.Context,
	t *domain.Target,
	stale map[domain.InternedString]bool,
) (bool, error) {
	for _, dep := range bc.Graph.Upstream(t.Name) {
		if stale[dep] {
			return true, nil
		}
	}

	name := t.Name.String()
	valueHash, err := bc.Cache.Hash(name, domain.NamespaceValues)
	if err != nil {
		if neverBuilt(err) {
			return true, nil
		}
		return false, err
	}

	var previous domain.Fingerprint
	if err := bc.Cache.Load(name, domain.NamespaceFingerprints, &previous); err != nil {
		if neverBuilt(err) {
			return true, nil
		}
		return false, err
	}
	if previous.Value != valueHash {
		return true, nil
	}

	current, err := Fingerprint(ctx, bc, t)
	if err != nil {
		return false, err
	}
	return bc.TriggerFor(t)(&previous, current), nil
}
