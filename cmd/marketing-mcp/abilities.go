package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/edgeopslabs/marketing-mcp/pkg/abilities"
	"github.com/edgeopslabs/marketing-mcp/pkg/app"
	"github.com/edgeopslabs/marketing-mcp/pkg/auth"
	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newAbilitiesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abilities",
		Short: "Inspect and run the registered abilities",
	}
	cmd.AddCommand(newAbilitiesListCmd(configPath), newAbilitiesRunCmd(configPath))
	return cmd
}

// offlineConfig keeps the adapter and telemetry out of one-shot commands.
func offlineConfig(cfg *config.Config) *config.Config {
	cfg.Adapter.Enabled = false
	cfg.Telemetry.Enabled = false
	cfg.Abilities.Enabled = true
	return cfg
}

func newAbilitiesListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List abilities with their annotations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := offlineConfig(loadConfig(*configPath))
			// listing needs no content
			a, err := app.New(cmd.Context(), cfg, app.WithStore(content.NewMemoryStore(nil)))
			if err != nil {
				return err
			}
			renderAbilities(cmd.OutOrStdout(), a.Registry().List())
			return nil
		},
	}
}

func renderAbilities(w io.Writer, list []*abilities.Ability) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Ability", "Label", "Read-only", "Description"})
	for _, a := range list {
		readOnly := text.FgYellow.Sprint("no")
		if a.Meta().ReadOnly {
			readOnly = text.FgGreen.Sprint("yes")
		}
		t.AppendRow(table.Row{a.Name(), a.Label(), readOnly, a.Description()})
	}
	t.AppendFooter(table.Row{"", "", "Total", strconv.Itoa(len(list))})
	t.Render()
}

func newAbilitiesRunCmd(configPath *string) *cobra.Command {
	var (
		input        string
		login        string
		capabilities []string
	)

	cmd := &cobra.Command{
		Use:   "run <ability>",
		Short: "Execute one ability against the configured content source",
		Example: `  marketing-mcp abilities run marketing/get-posts --input '{"number":3}'
  marketing-mcp abilities run marketing/get-posts --input '{"status":"private"}' --capability read_private_posts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := offlineConfig(loadConfig(*configPath))
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			ctx := auth.WithCaller(cmd.Context(), auth.Caller{Login: login, Capabilities: capabilities})
			out, err := a.Registry().Execute(ctx, args[0], json.RawMessage(input))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("failed to encode output: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "{}", "ability input as a JSON object")
	cmd.Flags().StringVar(&login, "as", "cli", "caller login")
	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "capabilities granted to the caller")
	return cmd
}
