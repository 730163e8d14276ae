/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ssargent/fieldwire/pkg/codec"
	"github.com/ssargent/fieldwire/pkg/config"
	"github.com/ssargent/fieldwire/pkg/logging"
)

var (
	appConfig *config.Config
	logger    = zerolog.Nop()
	decoder   = codec.NewDecoder()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fieldwire",
	Short: "FieldWire - self-describing binary field codec",
	Long: `FieldWire encodes typed, keyed fields into a compact self-describing
binary format and decodes untrusted bytes back into fields.

Records can be converted to and from JSON, appended to field logs, kept in
a local field store, or served over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		appConfig = cfg
		logger = logging.Init(cfg.Logging, cmd.ErrOrStderr())
		decoder = codec.NewDecoder(cfg.DecoderOptions()...)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory for the field store")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
}

// loadConfig reads the config file when one exists and applies the global
// flag overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if !explicit {
		path = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	switch {
	case config.ConfigExists(path):
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case explicit && cmd.Name() != "init":
		return nil, errors.Newf("config file does not exist: %s", path)
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if _, ok := logging.ParseLevel(level); !ok {
			return nil, errors.Newf("unknown log level %q", level)
		}
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}
