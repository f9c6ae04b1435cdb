package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quillblog/internal/config"
	"quillblog/internal/logger"
)

var envFiles []string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quillblog",
		Short:         "A small multi-user blog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "load settings from these .env files (default ./.env if present)")

	root.AddCommand(newServeCmd(), newInitDBCmd())
	return root
}

// loadConfig reads configuration and initialises logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(envFiles...)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func main() {
	logger.Init("info", "console")

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("quillblog failed")
		os.Exit(1)
	}
}
