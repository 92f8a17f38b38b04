package ports

import (
	"context"

	"go.trai.ch/mallard/internal/core/domain"
)

// WorkQueue hands invocations to remote workers.
//
//go:generate mockgen -source=queue.go -destination=mocks/mock_queue.go -package=mocks
type WorkQueue interface {
	// Submit evaluates inv on a worker.
	// Failures to reach a worker are returned wrapping domain.ErrTransport;
	// any other error is the command's own failure.
	Submit(ctx context.Context, inv *domain.Invocation) (domain.Outcome, error)
	// Close releases the connections to the workers.
	Close() error
}
