package buildctx

import (
	"context"
	"time"

	"go.trai.ch/mallard/internal/core/ports"
)

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}

func (noopTracer) EmitPlan(context.Context, []string, map[string][]string) {}

type noopSpan struct{}

func (noopSpan) Write(p []byte) (int, error) { return len(p), nil }
func (noopSpan) End() {}
func (noopSpan) RecordError(error) {}
func (noopSpan) SetAttribute(string, any) {}

type noopMetrics struct{}

func (noopMetrics) ObserveTarget(string, time.Duration) {}
func (noopMetrics) ObserveAttempt(bool) {}
func (noopMetrics) SetOutdated(int) {}
func (noopMetrics) Write(string) error { return nil }
