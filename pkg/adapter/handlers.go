package adapter

import (
	"context"
	"log/slog"
)

// ErrorHandler receives failures the adapter cannot return to a caller
// directly: server setup problems and failed tool calls.
type ErrorHandler interface {
	HandleError(ctx context.Context, serverID string, err error)
}

// LogErrorHandler writes errors to a slog logger.
type LogErrorHandler struct {
	Logger *slog.Logger
}

func (h LogErrorHandler) HandleError(ctx context.Context, serverID string, err error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"server", serverID, "error", err}
	if call, ok := CallFromContext(ctx); ok {
		attrs = append(attrs, "tool", call.Tool, "invocation", call.InvocationID, "transport", call.Transport)
	}
	logger.ErrorContext(ctx, "mcp adapter error", attrs...)
}

// Call describes one tool invocation.
type Call struct {
	ServerID     string
	Tool         string
	Ability      string
	InvocationID string
	Transport    TransportKind
}

// ObservabilityHandler wraps tool invocations. StartCall returns the context
// the ability runs with and a function that is called with the outcome.
type ObservabilityHandler interface {
	StartCall(ctx context.Context, call Call) (context.Context, func(err error))
}

type callKey struct{}

func withCall(ctx context.Context, call Call) context.Context {
	return context.WithValue(ctx, callKey{}, call)
}

// CallFromContext returns the invocation a context belongs to.
func CallFromContext(ctx context.Context) (Call, bool) {
	call, ok := ctx.Value(callKey{}).(Call)
	return call, ok
}

type transportKey struct{}

func withTransport(ctx context.Context, kind TransportKind) context.Context {
	return context.WithValue(ctx, transportKey{}, kind)
}

func transportFromContext(ctx context.Context) TransportKind {
	kind, _ := ctx.Value(transportKey{}).(TransportKind)
	return kind
}
