package app

import (
	"context"
	"errors"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/engine/buildctx"
	"golang.org/x/sync/errgroup"
)

// prepare evaluates the prework into the targets scope, in declaration order,
// then loads every import into the imports scope. Imports are also stored in
// the imports namespace when persist is set.
// Both run with the scopes unlocked so commands may introduce bindings.
func (a *App) prepare(ctx context.Context, bc *buildctx.Context, persist bool) error {
	bc.TargetScope.Unlock()
	bc.ImportScope.Unlock()
	defer func() {
		if bc.LockScopes {
			bc.ImportScope.Lock()
		}
	}()

	for _, p := range bc.Plan.Prework {
		out, err := bc.Evaluator.Evaluate(ctx, a.bindingInvocation(bc, p, bc.TargetScope))
		if err != nil {
			return errors.Join(domain.Detail(domain.ErrPreworkFailed, "binding", p.Name), err)
		}
		bc.TargetScope.Commit(p.Name, out.Value)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bc.Jobs)
	for _, imp := range bc.Plan.Imports {
		g.Go(func() error {
			out, err := bc.Evaluator.Evaluate(gctx, a.bindingInvocation(bc, imp, bc.ImportScope))
			if err != nil {
				return errors.Join(domain.Detail(domain.ErrImportFailed, "import", imp.Name), err)
			}
			if persist {
				if _, err := bc.Cache.Set(imp.Name, out.Value, domain.NamespaceImports); err != nil {
					return err
				}
			}
			bc.ImportScope.Commit(imp.Name, out.Value)
			return nil
		})
	}
	return g.Wait()
}

// bindingInvocation builds the invocation of a prework or import binding.
// Bindings see the prework evaluated before them.
func (a *App) bindingInvocation(bc *buildctx.Context, b domain.Binding, scope *domain.Scope) *domain.Invocation {
	lang := b.Language
	if lang == "" {
		lang = bc.Plan.Language
	}
	return &domain.Invocation{
		Name:     b.Name,
		Command:  b.Command,
		Language: lang,
		Inputs:   bc.TargetScope.Snapshot(),
		Attempt:  1,
		Dir:      bc.Plan.Root,
		Scope:    scope,
	}
}
