package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/edgeopslabs/marketing-mcp/pkg/app"
	"github.com/edgeopslabs/marketing-mcp/pkg/common"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		transport string
		safeMode  bool
		addr      string
		baseURL   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the marketing MCP server over HTTP or stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(*configPath)
			if safeMode {
				cfg.Server.SafeMode = true
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if baseURL != "" {
				cfg.HTTP.BaseURL = baseURL
			}

			stdio := false
			switch strings.ToLower(transport) {
			case "http":
			case "stdio":
				stdio = true
				if !slices.Contains(cfg.Adapter.Transports, "stdio") {
					cfg.Adapter.Transports = append(cfg.Adapter.Transports, "stdio")
				}
			default:
				return fmt.Errorf("unknown transport %q: use http or stdio", transport)
			}

			common.PrintBanner(os.Stderr)
			if cfg.Server.SafeMode {
				slog.Warn("safe mode enabled (read-only)")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(context.Background()); err != nil {
					slog.Warn("telemetry shutdown failed", "error", err)
				}
			}()

			if stdio {
				fmt.Fprintln(os.Stderr, "marketing-mcp is serving on stdio")
				return a.ServeStdio(ctx, os.Stdin, os.Stdout)
			}
			return a.ServeHTTP(ctx)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "http", "transport: http or stdio")
	cmd.Flags().BoolVar(&safeMode, "safe-mode", false, "only publish read-only abilities")
	cmd.Flags().StringVar(&addr, "http-addr", "", "http listen address (overrides config)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "public base URL for SSE message endpoints")
	return cmd
}
