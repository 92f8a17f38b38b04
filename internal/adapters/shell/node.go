package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mallard/internal/adapters/logger"
	"go.trai.ch/mallard/internal/core/ports"
)

// NodeID is the unique identifier for the shell evaluator Graft node.
const NodeID graft.ID = "adapter.evaluator.shell"

func init() {
	graft.Register(graft.Node[*Evaluator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Evaluator, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(log), nil
		},
	})
}
