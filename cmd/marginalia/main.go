package main

import (
	"fmt"
	"os"

	"github.com/lalith-99/marginalia/internal/config"
	"github.com/lalith-99/marginalia/internal/observ"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfg    *config.Config
		logger *zap.Logger
	)

	rootCmd := &cobra.Command{
		Use:           "marginalia",
		Short:         "Annotation sidebar state sync and real-time relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err = observ.NewLogger(cfg.Env, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Sync()
			}
		},
	}

	deps := func() (*config.Config, *zap.Logger) { return cfg, logger }
	rootCmd.AddCommand(
		newRelayCmd(deps),
		newWatchCmd(deps),
		newTokenCmd(deps),
	)
	return rootCmd.Execute()
}
