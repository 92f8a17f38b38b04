package expr

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the CEL evaluator Graft node.
const NodeID graft.ID = "adapter.evaluator.cel"

func init() {
	graft.Register(graft.Node[*Evaluator]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Evaluator, error) {
			return New(), nil
		},
	})
}
