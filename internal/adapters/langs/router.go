// Package langs dispatches invocations to the evaluator registered for their language.
package langs

import (
	"context"
	"maps"
	"slices"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Evaluator = (*Router)(nil)

// Router implements ports.Evaluator by language.
type Router struct {
	fallback   string
	evaluators map[string]ports.Evaluator
}

// NewRouter creates a router. Invocations without a language use fallback.
func NewRouter(fallback string, evaluators map[string]ports.Evaluator) *Router {
	return &Router{fallback: fallback, evaluators: maps.Clone(evaluators)}
}

// Languages returns the registered languages in sorted order.
func (r *Router) Languages() []string {
	return slices.Sorted(maps.Keys(r.evaluators))
}

// Supports reports whether lang, or the fallback when lang is empty, is registered.
func (r *Router) Supports(lang string) bool {
	_, ok := r.evaluators[r.resolve(lang)]
	return ok
}

// Evaluate forwards inv to the evaluator of its language.
func (r *Router) Evaluate(ctx context.Context, inv *domain.Invocation) (domain.Outcome, error) {
	lang := r.resolve(inv.Language)
	ev, ok := r.evaluators[lang]
	if !ok {
		return domain.Outcome{}, zerr.With(domain.Detail(domain.ErrEvaluatorNotFound, "language", lang), "target", inv.Name)
	}
	return ev.Evaluate(ctx, inv)
}

func (r *Router) resolve(lang string) string {
	if lang == "" {
		return r.fallback
	}
	return lang
}
