package main

import (
	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Docbench server via HTTP.

These commands require a running server (docbench serve).
Use --server to specify a custom server URL.

Examples:
  docbench api health              # Check server health
  docbench api runs list           # List all persisted runs
  docbench api runs get <id>       # Get a specific run
  docbench api runs report latest  # Aggregated report for the latest run`,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Benchmark run commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Runs as subcommand group
	runsCmd.AddCommand((&endpoints.ListRunsEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.GetRunEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.DeleteRunEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.ReportEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.RescoreEndpoint{}).Command(getServerURL))

	// Pipelines at top level of api
	apiCmd.AddCommand((&endpoints.ListPipelinesEndpoint{}).Command(getServerURL))

	// Swagger spec and UI shortcut
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SwaggerUIEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(apiCmd)
}
