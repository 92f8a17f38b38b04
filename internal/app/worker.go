package app

import (
	"context"
	"net"

	"go.trai.ch/mallard/internal/adapters/remote" //nolint:depguard // Wired in app layer
)

// ServeWorker evaluates invocations sent by distributed builds until ctx is cancelled.
func (a *App) ServeWorker(ctx context.Context, lis net.Listener) error {
	a.logger.Info("worker listening on " + lis.Addr().String())
	return remote.NewServer(a.evaluator, a.logger).Serve(ctx, lis)
}
