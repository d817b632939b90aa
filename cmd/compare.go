package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/compare"
	"github.com/sells-group/fsc-watch/internal/runio"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a baseline run against an LLM run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		baselineDir, _ := cmd.Flags().GetString("baseline")
		llmDir, _ := cmd.Flags().GetString("llm")
		outPath, _ := cmd.Flags().GetString("out")

		report, err := compare.New().Compare(cmd.Context(), baselineDir, llmDir)
		if err != nil {
			return eris.Wrap(err, "compare")
		}
		if err := runio.WriteJSON(outPath, report); err != nil {
			return err
		}

		zap.L().Info("compare finished",
			zap.String("out", outPath),
			zap.Int("mismatches", report.Total()),
		)
		return nil
	},
}

func init() {
	compareCmd.Flags().String("baseline", "", "baseline run directory")
	compareCmd.Flags().String("llm", "", "llm run directory")
	compareCmd.Flags().String("out", "compare_report.json", "output report path")
	_ = compareCmd.MarkFlagRequired("baseline")
	_ = compareCmd.MarkFlagRequired("llm")
	rootCmd.AddCommand(compareCmd)
}
