package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/capture"
	"github.com/sells-group/fsc-watch/internal/llm"
	"github.com/sells-group/fsc-watch/internal/pipeline"
	"github.com/sells-group/fsc-watch/internal/registry"
	"github.com/sells-group/fsc-watch/pkg/anthropic"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Capture and extract every registry source into a new run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		registryPath, _ := cmd.Flags().GetString("registry")
		if registryPath == "" {
			registryPath = cfg.Scrape.Registry
		}
		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = cfg.Scrape.OutDir
		}
		runID, _ := cmd.Flags().GetString("run-id")
		if runID == "" {
			runID = uuid.NewString()
		}
		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = cfg.Anthropic.Model
		}

		reg, err := registry.Load(registryPath)
		if err != nil {
			return err
		}

		runner := &pipeline.Runner{
			Registry:     reg,
			RegistryPath: registryPath,
			OutDir:       outDir,
			RunID:        runID,
			Fetcher: capture.NewFetcher(capture.Options{
				UserAgent:     cfg.Scrape.UserAgent,
				Timeout:       time.Duration(cfg.Scrape.TimeoutSecs) * time.Second,
				RatePerSecond: cfg.Scrape.RatePerSecond,
			}),
			Provider: &llm.AnthropicProvider{
				Client:    anthropic.NewClient(cfg.Anthropic.Key),
				Model:     model,
				MaxTokens: int64(cfg.Anthropic.MaxTokens),
			},
			Model: model,
		}

		manifest, err := runner.Run(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		failed := 0
		for _, src := range manifest.Sources {
			if src.Status != "success" {
				failed++
			}
		}
		zap.L().Info("scrape finished",
			zap.String("run_id", manifest.RunID),
			zap.String("run_dir", manifest.RunDir),
			zap.Int("failed_sources", failed),
		)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().String("registry", "", "registry path (default from config)")
	scrapeCmd.Flags().String("out", "", "output directory (default from config)")
	scrapeCmd.Flags().String("run-id", "", "run id (default random)")
	scrapeCmd.Flags().String("model", "", "extraction model (default from config)")
	rootCmd.AddCommand(scrapeCmd)
}
