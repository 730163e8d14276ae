/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ssargent/fieldwire/pkg/api"
	"github.com/ssargent/fieldwire/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the FieldWire REST API server.

The server encodes and decodes records and manages the field store under the
data directory. Every /api/v1 route requires the X-API-Key header; Prometheus
metrics are served unauthenticated at /metrics.

Examples:
  fieldwire serve
  fieldwire serve --port=9300 --api-key=mysecretkey`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverConfig, err := serverConfigFor(cmd, appConfig)
		if err != nil {
			return err
		}

		fs, err := openStore()
		if err != nil {
			return err
		}
		defer fs.Close()

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		server := api.NewServer(fs, decoder, serverConfig, api.NewMetrics(registry), logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return api.Start(ctx, server)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config)")
	serveCmd.Flags().String("bind", "", "Address to bind (default from config)")
	serveCmd.Flags().String("api-key", "", "API key required on /api/v1 routes (default from config)")
}

// serverConfigFor merges the serve flags over cfg. An "auto" API key is
// replaced with a key generated for this run only.
func serverConfigFor(cmd *cobra.Command, cfg *config.Config) (api.ServerConfig, error) {
	sc := api.ServerConfig{
		Port:   cfg.Port,
		Bind:   cfg.Bind,
		APIKey: cfg.Security.APIKey,
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		sc.Port = port
	}
	if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
		sc.Bind = bind
	}
	if key, _ := cmd.Flags().GetString("api-key"); key != "" {
		sc.APIKey = key
	}

	if sc.APIKey == "" || sc.APIKey == "auto" {
		key, err := config.GenerateSecureKey(32)
		if err != nil {
			return api.ServerConfig{}, err
		}
		sc.APIKey = key
		logger.Warn().Str("api_key", key).Msg("no API key configured, generated one for this run; run 'fieldwire init' to persist one")
	}
	return sc, nil
}
