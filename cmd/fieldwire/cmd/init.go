/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/fieldwire/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file with a generated API key and create
the data directory.

Examples:
	  fieldwire init
	  fieldwire init --config ./fieldwire.yaml --data-dir ./data --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		cfg, created, err := initializeConfig(configPath, appConfig.DataDir, force)
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s. Use --force to overwrite.\n", configPath)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ FieldWire initialized\n")
		fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\n", configPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Data directory: %s\n", cfg.DataDir)
		fmt.Fprintf(cmd.OutOrStdout(), "API key: %s\n", cfg.Security.APIKey)
		fmt.Fprintf(cmd.OutOrStdout(), "\nStart the server with:\n  fieldwire serve --config %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

// initializeConfig bootstraps a config at configPath and creates its data
// directory. When a config already exists and force is not set nothing is
// written and created is false.
func initializeConfig(configPath, dataDir string, force bool) (cfg *config.Config, created bool, err error) {
	if config.ConfigExists(configPath) && !force {
		return nil, false, nil
	}

	cfg, err = config.BootstrapConfig(configPath, dataDir)
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, false, errors.Wrap(err, "failed to create data directory")
	}
	return cfg, true, nil
}
