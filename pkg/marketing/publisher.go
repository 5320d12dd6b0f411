package marketing

import (
	"context"
	"log/slog"

	"github.com/edgeopslabs/marketing-mcp/pkg/adapter"
	"github.com/edgeopslabs/marketing-mcp/pkg/types"
)

// Publisher creates the marketing MCP server on the adapter.
type Publisher struct {
	adapter       types.Optional[*adapter.Adapter]
	observability adapter.ObservabilityHandler
	logger        *slog.Logger

	published bool
}

// NewPublisher returns a Publisher. observability may be nil.
func NewPublisher(a types.Optional[*adapter.Adapter], observability adapter.ObservabilityHandler, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{adapter: a, observability: observability, logger: logger}
}

// Transports picks streamable HTTP when installed and SSE otherwise. Stdio is
// added whenever the adapter has it.
func Transports(a *adapter.Adapter) []adapter.TransportKind {
	var kinds []adapter.TransportKind
	switch {
	case a.HasTransport(adapter.TransportStreamableHTTP):
		kinds = append(kinds, adapter.TransportStreamableHTTP)
	case a.HasTransport(adapter.TransportSSE):
		kinds = append(kinds, adapter.TransportSSE)
	}
	if a.HasTransport(adapter.TransportStdio) {
		kinds = append(kinds, adapter.TransportStdio)
	}
	return kinds
}

// ServerConfig is the descriptor handed to the adapter.
func (p *Publisher) ServerConfig(a *adapter.Adapter) adapter.ServerConfig {
	return adapter.ServerConfig{
		ID:            ServerID,
		Domain:        ServerDomain,
		Protocol:      adapter.ProtocolMCP,
		Name:          ServerName,
		Description:   ServerDescription,
		Version:       ServerVersion,
		Transports:    Transports(a),
		ErrorHandler:  adapter.LogErrorHandler{Logger: p.logger},
		Observability: p.observability,
		Abilities:     AbilityNames(),
	}
}

// Publish creates the server once. Failures are reported through the
// server's error handler and are not returned.
func (p *Publisher) Publish(_ context.Context) error {
	if p.published {
		return nil
	}
	a, ok := p.adapter.Get()
	if !ok {
		p.logger.Debug("mcp adapter unavailable, skipping marketing server")
		return nil
	}
	p.published = true

	// CreateServer hands failures to the error handler itself.
	srv, err := a.CreateServer(p.ServerConfig(a))
	if err != nil {
		return nil
	}
	p.logger.Info("marketing server published", "server", srv.ID(), "endpoint", a.Endpoint(srv.ID()))
	return nil
}
