// Package app wires configuration, content, abilities and the MCP adapter
// into a running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/edgeopslabs/marketing-mcp/pkg/abilities"
	"github.com/edgeopslabs/marketing-mcp/pkg/adapter"
	"github.com/edgeopslabs/marketing-mcp/pkg/auth"
	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
	"github.com/edgeopslabs/marketing-mcp/pkg/lifecycle"
	"github.com/edgeopslabs/marketing-mcp/pkg/marketing"
	"github.com/edgeopslabs/marketing-mcp/pkg/policy"
	"github.com/edgeopslabs/marketing-mcp/pkg/registry"
	"github.com/edgeopslabs/marketing-mcp/pkg/telemetry"
	"github.com/edgeopslabs/marketing-mcp/pkg/types"
	"golang.org/x/sync/errgroup"

	_ "github.com/edgeopslabs/marketing-mcp/pkg/modules/file"
	_ "github.com/edgeopslabs/marketing-mcp/pkg/modules/kubernetes"
	_ "github.com/edgeopslabs/marketing-mcp/pkg/modules/wordpress"
)

const stdioLogin = "stdio"

type App struct {
	Config    *config.Config
	Store     content.Store
	Hooks     *lifecycle.Hooks
	Telemetry *telemetry.Provider

	registry *abilities.Registry
	adapter  *adapter.Adapter
	authn    *auth.Authenticator
	logger   *slog.Logger
}

type Option func(*options)

type options struct {
	store  content.Store
	logger *slog.Logger
}

// WithStore skips the configured content source.
func WithStore(s content.Store) Option {
	return func(o *options) { o.store = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New opens the content store, builds the collaborators cfg enables and boots
// the lifecycle, which registers the abilities and publishes the server.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = registry.Open(ctx, cfg, o.logger)
		if err != nil {
			return nil, err
		}
	}

	authn, err := auth.NewAuthenticator(cfg.Auth.Users, o.logger)
	if err != nil {
		return nil, err
	}
	transports, err := ParseTransports(cfg.Adapter.Transports)
	if err != nil {
		return nil, err
	}
	tel, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Server.Name, cfg.Server.Version)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Store:     store,
		Hooks:     lifecycle.New(o.logger),
		Telemetry: tel,
		authn:     authn,
		logger:    o.logger,
	}

	registryDep := types.Unavailable[*abilities.Registry]()
	if cfg.Abilities.Enabled {
		a.registry = abilities.NewRegistry(o.logger)
		registryDep = types.Available(a.registry)
	}

	adapterDep := types.Unavailable[*adapter.Adapter]()
	if cfg.Adapter.Enabled && a.registry != nil {
		a.adapter = adapter.New(a.registry,
			adapter.WithTransports(transports...),
			adapter.WithBasePath(cfg.HTTP.BasePath),
			adapter.WithBaseURL(cfg.HTTP.BaseURL),
			adapter.WithPolicy(policy.New(cfg.Policy, cfg.Server.SafeMode)),
			adapter.WithStdioCaller(auth.Caller{Login: stdioLogin, Capabilities: cfg.Auth.StdioCapabilities}),
			adapter.WithLogger(o.logger),
		)
		adapterDep = types.Available(a.adapter)
	} else if cfg.Adapter.Enabled {
		o.logger.Warn("mcp adapter needs the abilities registry; adapter disabled")
	}

	var observer adapter.ObservabilityHandler
	if cfg.Telemetry.Enabled {
		obs, err := tel.Observer()
		if err != nil {
			_ = tel.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create telemetry observer: %w", err)
		}
		observer = obs
	}

	registrar := marketing.NewRegistrar(registryDep, store, location(cfg.Content.Timezone, o.logger), o.logger)
	publisher := marketing.NewPublisher(adapterDep, observer, o.logger)
	marketing.AddHooks(a.Hooks, registrar, publisher)

	if err := a.Hooks.Boot(ctx); err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("boot failed: %w", err)
	}
	return a, nil
}

// Registry is the abilities registry, or nil when abilities are disabled.
func (a *App) Registry() *abilities.Registry { return a.registry }

// Adapter is the MCP adapter, or nil when it is disabled.
func (a *App) Adapter() *adapter.Adapter { return a.adapter }

// Handler serves the MCP endpoints, the abilities REST routes and metrics
// behind application password auth.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	if a.adapter != nil {
		mux.Handle("/", a.adapter.Handler())
	} else {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
	if a.registry != nil {
		prefix := "/" + strings.Trim(a.Config.HTTP.RESTPrefix, "/")
		rest := a.registry.Handler(prefix)
		mux.Handle(prefix+"/", rest)
		if prefix != "/" {
			mux.Handle(prefix, rest)
		}
	}
	if h := a.Telemetry.MetricsHandler(); h != nil {
		mux.Handle("/metrics", h)
	}
	return a.authn.Middleware(mux)
}

// ServeHTTP listens on the configured address until ctx is done, then shuts
// down within the configured timeout.
func (a *App) ServeHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	a.watch(ctx, g)
	g.Go(func() error {
		a.logger.Info("starting http server", "addr", srv.Addr, "basePath", a.Config.HTTP.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down http server")
		var errs []error
		if a.adapter != nil {
			errs = append(errs, a.adapter.Shutdown(shutdownCtx))
		}
		errs = append(errs, srv.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})
	return g.Wait()
}

// ServeStdio serves the marketing server on in and out until in is closed or
// ctx is done.
func (a *App) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	if a.adapter == nil {
		return fmt.Errorf("mcp adapter is disabled")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	a.watch(ctx, g)
	g.Go(func() error {
		defer cancel()
		return a.adapter.ServeStdio(ctx, marketing.ServerID, in, out)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	return a.Telemetry.Shutdown(ctx)
}

func (a *App) watch(ctx context.Context, g *errgroup.Group) {
	w, ok := a.Store.(content.Watcher)
	if !ok {
		return
	}
	g.Go(func() error {
		if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("content watcher stopped", "error", err)
		}
		return nil
	})
}

// ParseTransports maps configured transport names to adapter kinds.
func ParseTransports(names []string) ([]adapter.TransportKind, error) {
	kinds := make([]adapter.TransportKind, 0, len(names))
	for _, name := range names {
		switch kind := adapter.TransportKind(strings.ToLower(strings.TrimSpace(name))); kind {
		case adapter.TransportStreamableHTTP, adapter.TransportSSE, adapter.TransportStdio:
			kinds = append(kinds, kind)
		default:
			return nil, fmt.Errorf("unknown transport %q", name)
		}
	}
	return kinds, nil
}

func location(name string, logger *slog.Logger) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}
