package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/docbench/docbench/docs/swagger"
	"github.com/docbench/docbench/internal/server"
	"github.com/docbench/docbench/internal/server/endpoints"
)

var (
	serveHost string
	servePort string
)

// Docbench API
//
//	@title			Docbench API
//	@version		1.0
//	@description	Document pipeline benchmarking API for browsing runs, reports, and scores.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/docbench/docbench
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Docbench server",
	Long: `Start the Docbench HTTP server.

The server opens the result store and serves read and re-score operations
over persisted runs. Config changes are hot-reloaded while it runs; when the
server shuts down (via Ctrl+C or SIGTERM), the store is closed.

The server provides:
  - /health       - Basic server health check
  - /ready        - Readiness check (includes store status)
  - /api/runs     - Persisted benchmark runs, reports, and re-scoring
  - /swagger/     - Interactive API documentation

Examples:
  docbench serve                    # Start on the configured address
  docbench serve --port 3000        # Start on custom port
  docbench serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := getHome()
		if err != nil {
			return err
		}

		cm, err := getConfig()
		if err != nil {
			return err
		}
		cm.WatchConfig()

		conf := cm.Get()

		// Create server
		srv, err := server.New(server.Config{
			Host:            firstNonEmpty(serveHost, conf.Server.Host),
			Port:            firstNonEmpty(servePort, conf.Server.Port),
			Home:            h,
			ConfigManager:   cm,
			SwaggerSpecPath: endpoints.GetSwaggerSpecPath(),
			Logger:          logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
