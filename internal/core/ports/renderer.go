package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for output rendering.
// It decouples telemetry collection from presentation logic.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and flush buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	Wait() error

	// OnPlanEmit is called when the outdated targets are known.
	// targets: target names in execution order
	// deps: dependency map (target -> list of outdated dependencies)
	OnPlanEmit(targets []string, deps map[string][]string)

	// OnTargetStart is called when a target attempt begins.
	OnTargetStart(spanID, name string, startTime time.Time)

	// OnTargetLog is called when a target emits output.
	OnTargetLog(spanID string, data []byte)

	// OnTargetComplete is called when a target attempt finishes; err is nil on success.
	OnTargetComplete(spanID string, endTime time.Time, err error)
}
