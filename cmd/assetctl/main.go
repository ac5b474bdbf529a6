package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/supplyhub/backend/internal/config"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "assetctl",
	Short:         "Upload assets to the configured store from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file (defaults and SUPPLYHUB_* env when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine events to stderr")
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if !verbose {
		return cfg, logger.NewNop(), nil
	}
	cfg.Logger.OutputPaths = []string{"stderr"}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
