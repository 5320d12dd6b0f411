// Package adapter publishes registered abilities as MCP tools.
//
// An Adapter owns any number of servers. Each server is described by a
// ServerConfig naming the abilities it exposes and the transports it is
// reachable over; the Adapter builds an mcp-go server for it and serves it
// over streamable HTTP, SSE or stdio.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/edgeopslabs/marketing-mcp/pkg/abilities"
	"github.com/edgeopslabs/marketing-mcp/pkg/auth"
	"github.com/edgeopslabs/marketing-mcp/pkg/policy"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type TransportKind string

const (
	TransportStreamableHTTP TransportKind = "streamable-http"
	TransportSSE            TransportKind = "sse"
	TransportStdio          TransportKind = "stdio"
)

const ProtocolMCP = "mcp"

var (
	ErrServerExists         = errors.New("server already exists")
	ErrServerNotFound       = errors.New("server not found")
	ErrTransportUnavailable = errors.New("transport not installed")
)

// ServerConfig describes one published server. It is read-only once passed
// to CreateServer.
type ServerConfig struct {
	ID          string
	Domain      string
	Protocol    string
	Name        string
	Description string
	Version     string
	Transports  []TransportKind
	// ErrorHandler defaults to LogErrorHandler.
	ErrorHandler ErrorHandler
	// Observability may be nil.
	Observability ObservabilityHandler
	Abilities     []string
}

// ToolStatus is one entry of a server's tool inventory.
type ToolStatus struct {
	Tool        string `json:"name"`
	Ability     string `json:"ability"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

type Server struct {
	cfg   ServerConfig
	mcp   *server.MCPServer
	tools []ToolStatus

	streamable *server.StreamableHTTPServer
	sse        *server.SSEServer
}

func (s *Server) ID() string                { return s.cfg.ID }
func (s *Server) Config() ServerConfig      { return s.cfg }
func (s *Server) MCP() *server.MCPServer    { return s.mcp }
func (s *Server) Tools() []ToolStatus       { return append([]ToolStatus(nil), s.tools...) }
func (s *Server) Serves(kind TransportKind) bool {
	for _, t := range s.cfg.Transports {
		if t == kind {
			return true
		}
	}
	return false
}

type Adapter struct {
	registry    *abilities.Registry
	installed   map[TransportKind]bool
	basePath    string
	baseURL     string
	policy      *policy.Policy
	stdioCaller auth.Caller
	logger      *slog.Logger

	mu      sync.RWMutex
	servers map[string]*Server
	order   []string
}

type Option func(*Adapter)

// WithTransports sets the installed transports. By default every transport is
// installed.
func WithTransports(kinds ...TransportKind) Option {
	return func(a *Adapter) {
		a.installed = make(map[TransportKind]bool, len(kinds))
		for _, k := range kinds {
			a.installed[k] = true
		}
	}
}

// WithBasePath sets the HTTP path servers are mounted under.
func WithBasePath(p string) Option {
	return func(a *Adapter) { a.basePath = "/" + strings.Trim(p, "/") }
}

// WithBaseURL sets the public URL SSE clients are told to post messages to.
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(u, "/") }
}

func WithPolicy(p *policy.Policy) Option {
	return func(a *Adapter) { a.policy = p }
}

// WithStdioCaller sets the identity stdio sessions run as.
func WithStdioCaller(c auth.Caller) Option {
	return func(a *Adapter) { a.stdioCaller = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

func New(registry *abilities.Registry, opts ...Option) *Adapter {
	a := &Adapter{
		registry: registry,
		installed: map[TransportKind]bool{
			TransportStreamableHTTP: true,
			TransportSSE:            true,
			TransportStdio:          true,
		},
		basePath: "/mcp",
		logger:   slog.Default(),
		servers:  make(map[string]*Server),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HasTransport reports whether kind is installed.
func (a *Adapter) HasTransport(kind TransportKind) bool {
	return a.installed[kind]
}

func (a *Adapter) Server(id string) (*Server, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.servers[id]
	return s, ok
}

// Servers returns servers in creation order.
func (a *Adapter) Servers() []*Server {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Server, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.servers[id])
	}
	return out
}

// CreateServer builds and stores a server. Abilities that are missing are
// reported to the error handler and skipped; abilities the policy denies are
// skipped with a warning.
func (a *Adapter) CreateServer(cfg ServerConfig) (*Server, error) {
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = LogErrorHandler{Logger: a.logger}
	}
	if cfg.Protocol == "" {
		cfg.Protocol = ProtocolMCP
	}
	cfg.Transports = append([]TransportKind(nil), cfg.Transports...)
	cfg.Abilities = append([]string(nil), cfg.Abilities...)

	if err := a.validate(cfg); err != nil {
		cfg.ErrorHandler.HandleError(context.Background(), cfg.ID, err)
		return nil, err
	}

	hooks := &server.Hooks{}
	hooks.AddOnError(func(ctx context.Context, _ any, method mcp.MCPMethod, _ any, err error) {
		cfg.ErrorHandler.HandleError(ctx, cfg.ID, fmt.Errorf("%s: %w", method, err))
	})

	srv := &Server{cfg: cfg}
	srv.mcp = server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithInstructions(cfg.Description),
		server.WithHooks(hooks),
	)

	for _, name := range cfg.Abilities {
		ability, ok := a.registry.Get(name)
		if !ok {
			cfg.ErrorHandler.HandleError(context.Background(), cfg.ID, fmt.Errorf("ability %s: %w", name, abilities.ErrNotFound))
			srv.tools = append(srv.tools, ToolStatus{Tool: ToolName(name), Ability: name, Status: "missing"})
			continue
		}
		if a.policy != nil && a.policy.Evaluate(name, ability.Meta().ReadOnly) == policy.Deny {
			a.logger.Warn("ability blocked by policy", "server", cfg.ID, "ability", name)
			srv.tools = append(srv.tools, ToolStatus{Tool: ToolName(name), Ability: name, Description: ability.Description(), Status: policy.Deny.String()})
			continue
		}

		tool := mcp.NewToolWithRawSchema(ToolName(name), ability.Description(), ability.InputSchema())
		meta := ability.Meta()
		tool.Annotations = mcp.ToolAnnotation{
			Title:           ability.Label(),
			ReadOnlyHint:    mcp.ToBoolPtr(meta.ReadOnly),
			DestructiveHint: mcp.ToBoolPtr(meta.Destructive),
			IdempotentHint:  mcp.ToBoolPtr(meta.Idempotent),
			OpenWorldHint:   mcp.ToBoolPtr(false),
		}
		srv.mcp.AddTool(tool, a.toolHandler(srv, ability))
		srv.tools = append(srv.tools, ToolStatus{Tool: tool.Name, Ability: name, Description: tool.Description, Status: policy.Allow.String()})
		a.logger.Info("tool registered", "server", cfg.ID, "tool", tool.Name, "ability", name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.servers[cfg.ID]; exists {
		err := fmt.Errorf("server %s: %w", cfg.ID, ErrServerExists)
		cfg.ErrorHandler.HandleError(context.Background(), cfg.ID, err)
		return nil, err
	}
	a.mountHTTP(srv)
	a.servers[cfg.ID] = srv
	a.order = append(a.order, cfg.ID)
	a.logger.Info("mcp server created", "server", cfg.ID, "transports", cfg.Transports, "tools", len(srv.mcp.ListTools()))
	return srv, nil
}

func (a *Adapter) validate(cfg ServerConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("server id is required")
	}
	if _, exists := a.Server(cfg.ID); exists {
		return fmt.Errorf("server %s: %w", cfg.ID, ErrServerExists)
	}
	if cfg.Protocol != ProtocolMCP {
		return fmt.Errorf("server %s: unsupported protocol %q", cfg.ID, cfg.Protocol)
	}
	if len(cfg.Transports) == 0 {
		return fmt.Errorf("server %s: no transports", cfg.ID)
	}
	for _, t := range cfg.Transports {
		if !a.HasTransport(t) {
			return fmt.Errorf("server %s: %s: %w", cfg.ID, t, ErrTransportUnavailable)
		}
	}
	return nil
}

func (a *Adapter) toolHandler(srv *Server, ability *abilities.Ability) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := Call{
			ServerID:     srv.cfg.ID,
			Tool:         request.Params.Name,
			Ability:      ability.Name(),
			InvocationID: uuid.NewString(),
			Transport:    transportFromContext(ctx),
		}
		ctx = withCall(ctx, call)

		finish := func(error) {}
		if srv.cfg.Observability != nil {
			ctx, finish = srv.cfg.Observability.StartCall(ctx, call)
		}

		result, err := a.runAbility(ctx, ability, request.Params.Arguments)
		finish(err)
		if err != nil {
			srv.cfg.ErrorHandler.HandleError(ctx, srv.cfg.ID, err)
			return mcp.NewToolResultError(toolErrorMessage(err)), nil
		}
		return result, nil
	}
}

func (a *Adapter) runAbility(ctx context.Context, ability *abilities.Ability, arguments any) (*mcp.CallToolResult, error) {
	args, err := json.Marshal(arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	out, err := ability.Execute(ctx, args)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s result: %w", ability.Name(), err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolErrorMessage(err error) string {
	var abilityErr *abilities.Error
	if errors.As(err, &abilityErr) {
		return fmt.Sprintf("[%s] %s", abilityErr.Code, abilityErr.Message)
	}
	return err.Error()
}

// ToolName turns an ability name into a tool name. MCP tool names may not
// contain "/".
func ToolName(ability string) string {
	return strings.ReplaceAll(ability, "/", "-")
}
