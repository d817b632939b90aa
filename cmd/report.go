package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the latest week's surcharge events as markdown",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		md, err := report.Build(ctx, st)
		if err != nil {
			return eris.Wrap(err, "report")
		}

		outPath, _ := cmd.Flags().GetString("out")
		if outPath != "" {
			if err := os.WriteFile(outPath, []byte(md), 0o644); err != nil {
				return eris.Wrapf(err, "report: write %s", outPath)
			}
			zap.L().Info("wrote report", zap.String("out", outPath))
			return nil
		}

		fmt.Print(md)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("out", "", "write report to a file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}
