package remote

import (
	"context"
	"errors"
	"sync/atomic"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var _ ports.WorkQueue = (*Client)(nil)

// Client implements ports.WorkQueue over a fixed set of workers.
// Submissions are spread round robin.
type Client struct {
	conns []*grpc.ClientConn
	next  atomic.Uint64
}

// Dial creates a client for the workers at addrs.
// grpc.NewClient connects lazily, so unreachable workers surface on Submit.
func Dial(addrs []string, opts ...grpc.DialOption) (*Client, error) {
	if len(addrs) == 0 {
		return nil, domain.Detail(domain.ErrMalformedContext, "missing", "worker addresses")
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	c := &Client{}
	for _, addr := range addrs {
		conn, err := grpc.NewClient(addr, opts...)
		if err != nil {
			_ = c.Close()
			return nil, zerr.With(zerr.Wrap(domain.ErrTransport, err.Error()), "worker", addr)
		}
		c.conns = append(c.conns, conn)
	}
	return c, nil
}

// Submit evaluates inv on the next worker.
func (c *Client) Submit(ctx context.Context, inv *domain.Invocation) (domain.Outcome, error) {
	conn := c.conns[(c.next.Add(1)-1)%uint64(len(c.conns))]

	reply := new(EvaluateReply)
	if err := conn.Invoke(ctx, EvaluateMethod, &EvaluateRequest{Invocation: inv}, reply); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Outcome{}, ctxErr
		}
		return domain.Outcome{}, zerr.With(zerr.Wrap(domain.ErrTransport, err.Error()), "worker", conn.Target())
	}
	if reply.Error != "" {
		return domain.Outcome{}, zerr.With(zerr.Wrap(domain.ErrEvaluationFailed, reply.Error), "worker", conn.Target())
	}
	return domain.Outcome{Value: fromJSON(reply.Value), CPU: reply.CPU}, nil
}

// Close closes every worker connection.
func (c *Client) Close() error {
	errs := make([]error, 0, len(c.conns))
	for _, conn := range c.conns {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}
