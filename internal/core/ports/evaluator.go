package ports

import (
	"context"

	"go.trai.ch/mallard/internal/core/domain"
)

// Evaluator runs a command and produces its value.
// Commands are opaque to the engine; an evaluator receives them together with concrete dependency values.
//
//go:generate mockgen -source=evaluator.go -destination=mocks/mock_evaluator.go -package=mocks
type Evaluator interface {
	// Evaluate runs one attempt of the invocation.
	// Side-effect bindings must go through inv.Scope so that the scope lock applies.
	Evaluate(ctx context.Context, inv *domain.Invocation) (domain.Outcome, error)
}
