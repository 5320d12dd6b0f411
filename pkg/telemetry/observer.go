package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/edgeopslabs/marketing-mcp/pkg/abilities"
	"github.com/edgeopslabs/marketing-mcp/pkg/adapter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/edgeopslabs/marketing-mcp"

// Span and metric attribute keys.
const (
	AttrGenAIToolName      = "gen_ai.tool.name"
	AttrGenAIOperationName = "gen_ai.operation.name"
	AttrGenAIToolCallID    = "gen_ai.tool.call.id"
	AttrMCPServerID        = "mcp.server.id"
	AttrMCPTransport       = "mcp.transport"
	AttrAbilityName        = "ability.name"
	AttrErrorType          = "error.type"
)

// Observer records a span and request metrics for every tool call.
type Observer struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
	requests metric.Int64Counter
	failures metric.Int64Counter
}

func NewObserver(tp trace.TracerProvider, mp metric.MeterProvider) (*Observer, error) {
	meter := mp.Meter(instrumentationName)
	o := &Observer{tracer: tp.Tracer(instrumentationName)}

	var err error
	o.duration, err = meter.Float64Histogram(
		"gen_ai.server.request.duration",
		metric.WithDescription("Duration of MCP tool execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	o.requests, err = meter.Int64Counter(
		"gen_ai.server.request.count",
		metric.WithDescription("Number of MCP tool requests"),
	)
	if err != nil {
		return nil, err
	}
	o.failures, err = meter.Int64Counter(
		"mcp.errors.total",
		metric.WithDescription("Total MCP tool execution errors"),
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Observer returns an Observer bound to p's providers.
func (p *Provider) Observer() (*Observer, error) {
	return NewObserver(p.TracerProvider, p.MeterProvider)
}

func (o *Observer) StartCall(ctx context.Context, call adapter.Call) (context.Context, func(err error)) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrGenAIToolName, call.Tool),
		attribute.String(AttrGenAIOperationName, "execute_tool"),
		attribute.String(AttrMCPServerID, call.ServerID),
		attribute.String(AttrAbilityName, call.Ability),
	}
	if call.Transport != "" {
		attrs = append(attrs, attribute.String(AttrMCPTransport, string(call.Transport)))
	}
	ctx, span := o.tracer.Start(ctx, "execute_tool "+call.Tool,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
		trace.WithAttributes(attribute.String(AttrGenAIToolCallID, call.InvocationID)),
	)
	start := time.Now()

	return ctx, func(err error) {
		defer span.End()
		measured := metric.WithAttributes(attrs...)
		o.duration.Record(ctx, time.Since(start).Seconds(), measured)
		o.requests.Add(ctx, 1, measured)
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return
		}
		errType := errorType(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorType, errType))
		o.failures.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String(AttrErrorType, errType))...))
	}
}

func errorType(err error) string {
	var abilityErr *abilities.Error
	if errors.As(err, &abilityErr) {
		return abilityErr.Code
	}
	return "_OTHER"
}

var _ adapter.ObservabilityHandler = (*Observer)(nil)
