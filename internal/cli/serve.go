// internal/cli/serve.go
package cli

import (
	"context"
	"log/slog"
	"os"

	"bookshelf/internal/config"
	"bookshelf/internal/observability"
	"bookshelf/internal/server"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bookshelf HTTP server",
		Example: `  # Start server on default port 9000
  bookshelf serve

  # Start server with a config file on a custom port
  bookshelf serve --config bookshelf.yaml --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			tel, err := observability.Setup(cmd.Context(), observability.Config{
				ServiceName:    cfg.Telemetry.ServiceName,
				ServiceVersion: cmd.Root().Version,
				OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
				OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
				MetricsEnabled: cfg.Telemetry.MetricsEnabled,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := tel.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
					logger.Error("telemetry shutdown failed", "err", err)
				}
			}()

			srv, err := server.New(cfg, server.WithLogger(logger), server.WithTelemetry(tel))
			if err != nil {
				return err
			}
			if cfg.Chaos.Enabled {
				logger.Warn("chaos fault injection enabled", "faults", srv.Injector().Active())
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVarP(&port, "port", "p", "9000", "Port to listen on")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}
