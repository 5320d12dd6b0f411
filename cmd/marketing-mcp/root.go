package main

import (
	"fmt"

	"github.com/edgeopslabs/marketing-mcp/pkg/common"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "marketing-mcp",
		Short: "Read-only marketing content tools over MCP",
		Long: `marketing-mcp registers read-only content abilities (posts, pages,
media, categories, tags and comments) and publishes them as an MCP server.`,
		Version:      common.Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "marketing-mcp.yaml", "path to marketing-mcp configuration file")
	root.SetVersionTemplate(`{{printf "marketing-mcp version %s\n" .Version}}`)

	root.AddCommand(
		newServeCmd(&configPath),
		newAbilitiesCmd(&configPath),
		newAuthCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of marketing-mcp",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "marketing-mcp version %s\n", common.Version)
		},
	}
}
