package ports

import (
	"context"
	"io"
)

// Tracer opens one span per target attempt and announces the outdated set.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan announces the outdated targets and their in-plan dependencies before dispatch.
	EmitPlan(ctx context.Context, targetNames []string, deps map[string][]string)
}

// Span is one attempt at building a target. Writes carry the target's log output.
type Span interface {
	io.Writer
	End()
	// RecordError marks the attempt failed.
	RecordError(err error)
	SetAttribute(key string, value any)
}

// SpanConfig is assembled from SpanOptions when a span starts.
type SpanConfig struct {
	Attempt int // 1-based, 0 when not a target attempt
}

// SpanOption configures a span at start.
type SpanOption func(*SpanConfig)

// WithAttempt tags a span with the attempt number of its target.
func WithAttempt(n int) SpanOption {
	return func(c *SpanConfig) {
		c.Attempt = n
	}
}
