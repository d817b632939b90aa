package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fsc-watch",
	Short: "Carrier fuel surcharge watcher",
	Long:  "Captures carrier fuel-surcharge pages, extracts canonical surcharge tables via an LLM, diffs them across runs, and applies weekly surcharges against EIA fuel prices.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
