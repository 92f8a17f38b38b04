package remote

import (
	"context"
	"net"

	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server evaluates invocations received from a build on a local evaluator.
type Server struct {
	evaluator  ports.Evaluator
	logger     ports.Logger
	grpcServer *grpc.Server
}

// NewServer creates a worker server backed by evaluator.
func NewServer(evaluator ports.Evaluator, logger ports.Logger) *Server {
	s := &Server{
		evaluator:  evaluator,
		logger:     logger,
		grpcServer: grpc.NewServer(),
	}
	s.grpcServer.RegisterService(&serviceDesc, s)
	return s
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		if err != nil {
			return zerr.Wrap(err, "worker server stopped")
		}
		return nil
	}
}

// Stop stops the server immediately.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// Evaluate implements the worker service.
func (s *Server) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateReply, error) {
	inv := req.Invocation
	if inv == nil {
		return nil, status.Error(codes.InvalidArgument, "missing invocation")
	}
	inv.Inputs = fromJSON(inv.Inputs).(map[string]any)
	inv.Scope = nil

	s.logger.Debug("evaluating " + inv.Name)
	out, err := s.evaluator.Evaluate(ctx, inv)
	if err != nil {
		return &EvaluateReply{Error: err.Error()}, nil
	}
	return &EvaluateReply{Value: out.Value, CPU: out.CPU}, nil
}
