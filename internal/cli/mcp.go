package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	ccmcp "github.com/valter-silva-au/contextcore/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the contextcore MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the contextcore MCP server on stdio",
	Long: `Start the contextcore MCP server on stdio transport.

The server exposes the pipeline as MCP tools that AI coding assistants
can call: validate_manifest, plan_artifacts, export_manifest, run_gate1,
run_gate2, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Exporter == nil {
			return fmt.Errorf("exporter not initialized")
		}

		srv := ccmcp.NewServer(ccmcp.ServerDeps{
			Exporter: Exporter,
			Gate1:    Gate1,
			Gate2:    Gate2,
			Events:   Events,
			Metrics:  MetricsCalc,
			Alerts:   AlertEngine,
			Config:   Config,
			Version:  appVersion,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
