// Package remote implements the distributed work queue: a gRPC worker service
// evaluating invocations and a client spreading them over a set of workers.
package remote

import (
	"context"
	"time"

	"go.trai.ch/mallard/internal/core/domain"
	"google.golang.org/grpc"
)

const (
	// ServiceName is the fully qualified name of the worker service.
	ServiceName = "mallard.worker.v1.Worker"
	// EvaluateMethod is the full method name of Evaluate.
	EvaluateMethod = "/" + ServiceName + "/Evaluate"
)

// EvaluateRequest asks a worker to run one attempt.
type EvaluateRequest struct {
	Invocation *domain.Invocation `json:"invocation"`
}

// EvaluateReply carries the outcome of an attempt.
// A failed command is reported in Error; gRPC errors are reserved for the transport.
type EvaluateReply struct {
	Value any           `json:"value,omitempty"`
	CPU   time.Duration `json:"cpu,omitempty"`
	Error string        `json:"error,omitempty"`
}

// workerService is the server side of the worker service.
type workerService interface {
	Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateReply, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*workerService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Evaluate",
			Handler:    evaluateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mallard/worker/v1/worker.json",
}

func evaluateHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodHandler
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(EvaluateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(workerService).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: EvaluateMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(workerService).Evaluate(ctx, req.(*EvaluateRequest))
	}
	return interceptor(ctx, in, info, handler)
}
