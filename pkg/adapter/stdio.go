package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/edgeopslabs/marketing-mcp/pkg/auth"
	"github.com/mark3labs/mcp-go/server"
)

// ServeStdio serves server id over newline-delimited JSON-RPC on in and out
// until ctx is done or in is closed. Calls run as the configured stdio caller.
func (a *Adapter) ServeStdio(ctx context.Context, id string, in io.Reader, out io.Writer) error {
	if !a.HasTransport(TransportStdio) {
		return fmt.Errorf("%s: %w", TransportStdio, ErrTransportUnavailable)
	}
	srv, ok := a.Server(id)
	if !ok {
		return fmt.Errorf("server %s: %w", id, ErrServerNotFound)
	}

	stdio := server.NewStdioServer(srv.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(a.logger.Handler(), slog.LevelError))
	stdio.SetContextFunc(func(ctx context.Context) context.Context {
		ctx = withTransport(ctx, TransportStdio)
		return auth.WithCaller(ctx, a.stdioCaller)
	})
	a.logger.Info("serving mcp over stdio", "server", id)
	return stdio.Listen(ctx, in, out)
}
