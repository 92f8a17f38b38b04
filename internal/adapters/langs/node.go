package langs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mallard/internal/adapters/expr"
	"go.trai.ch/mallard/internal/adapters/shell"
	"go.trai.ch/mallard/internal/core/ports"
)

// NodeID is the unique identifier for the evaluator router Graft node.
const NodeID graft.ID = "adapter.evaluator"

func init() {
	graft.Register(graft.Node[ports.Evaluator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{expr.NodeID, shell.NodeID},
		Run: func(ctx context.Context) (ports.Evaluator, error) {
			celEval, err := graft.Dep[*expr.Evaluator](ctx)
			if err != nil {
				return nil, err
			}
			shellEval, err := graft.Dep[*shell.Evaluator](ctx)
			if err != nil {
				return nil, err
			}
			return NewRouter(expr.Language, map[string]ports.Evaluator{
				expr.Language:  celEval,
				shell.Language: shellEval,
			}), nil
		},
	})
}
