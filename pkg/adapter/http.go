package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

type ServerSummary struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Version    string          `json:"version"`
	Domain     string          `json:"domain"`
	Transports []TransportKind `json:"transports"`
	Endpoint   string          `json:"endpoint,omitempty"`
	Tools      []ToolStatus    `json:"tools"`
}

// Inventory is the payload of the /tools endpoint.
type Inventory struct {
	Servers []ServerSummary `json:"servers"`
}

// Endpoint is the streamable HTTP path of a server.
func (a *Adapter) Endpoint(id string) string {
	return a.basePath + "/" + id
}

// mountHTTP creates the HTTP transports of srv. Callers hold a.mu.
func (a *Adapter) mountHTTP(srv *Server) {
	path := a.Endpoint(srv.cfg.ID)
	if srv.Serves(TransportStreamableHTTP) {
		srv.streamable = server.NewStreamableHTTPServer(srv.mcp,
			server.WithEndpointPath(path),
			server.WithHTTPContextFunc(func(ctx context.Context, _ *http.Request) context.Context {
				return withTransport(ctx, TransportStreamableHTTP)
			}),
		)
	}
	if srv.Serves(TransportSSE) {
		opts := []server.SSEOption{
			server.WithStaticBasePath(path),
			server.WithSSEEndpoint("/sse"),
			server.WithMessageEndpoint("/message"),
			server.WithKeepAlive(true),
			server.WithSSEContextFunc(func(ctx context.Context, _ *http.Request) context.Context {
				return withTransport(ctx, TransportSSE)
			}),
		}
		if a.baseURL != "" {
			opts = append(opts, server.WithBaseURL(a.baseURL))
		} else {
			opts = append(opts, server.WithUseFullURLForMessageEndpoint(false))
		}
		srv.sse = server.NewSSEServer(srv.mcp, opts...)
	}
}

// Handler serves every HTTP transport of every server plus /healthz and the
// /tools inventory. Servers created after the call are not mounted.
func (a *Adapter) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, srv := range a.Servers() {
		path := a.Endpoint(srv.cfg.ID)
		if srv.streamable != nil {
			mux.Handle(path, srv.streamable)
		}
		if srv.sse != nil {
			mux.Handle(path+"/sse", srv.sse.SSEHandler())
			mux.Handle(path+"/message", srv.sse.MessageHandler())
		}
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/tools", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.Inventory())
	})
	return mux
}

func (a *Adapter) Inventory() Inventory {
	inv := Inventory{Servers: []ServerSummary{}}
	for _, srv := range a.Servers() {
		summary := ServerSummary{
			ID:         srv.cfg.ID,
			Name:       srv.cfg.Name,
			Version:    srv.cfg.Version,
			Domain:     srv.cfg.Domain,
			Transports: srv.cfg.Transports,
			Tools:      srv.Tools(),
		}
		if srv.streamable != nil || srv.sse != nil {
			summary.Endpoint = a.Endpoint(srv.cfg.ID)
		}
		inv.Servers = append(inv.Servers, summary)
	}
	return inv
}

// Shutdown closes open SSE sessions and streamable HTTP servers.
func (a *Adapter) Shutdown(ctx context.Context) error {
	var errs []error
	for _, srv := range a.Servers() {
		if srv.sse != nil {
			errs = append(errs, srv.sse.Shutdown(ctx))
		}
		if srv.streamable != nil {
			errs = append(errs, srv.streamable.Shutdown(ctx))
		}
	}
	return errors.Join(errs...)
}
