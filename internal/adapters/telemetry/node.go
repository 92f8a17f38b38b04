package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mallard/internal/adapters/tui" //nolint:depguard // Renderer is wired here
	"go.trai.ch/mallard/internal/core/ports"
)

// TracerNodeID is the unique identifier for the Telemetry adapter Graft node.
const TracerNodeID graft.ID = "adapter.telemetry"

var _ ports.Tracer = (*OTelTracer)(nil)

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{tui.NodeID},
		Run: func(ctx context.Context) (ports.Tracer, error) {
			renderer, err := graft.Dep[ports.Renderer](ctx)
			if err != nil {
				return nil, err
			}
			return NewOTelTracer(renderer), nil
		},
	})
}
