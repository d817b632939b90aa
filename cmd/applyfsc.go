package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/applied"
)

var applyFscCmd = &cobra.Command{
	Use:   "applyfsc",
	Short: "Compute this week's applied surcharges from persisted data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("applyfsc"); err != nil {
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

		rows, err := applied.New(st).Apply(ctx)
		if err != nil {
			return err
		}

		for _, row := range rows {
			zap.L().Info("applied surcharge",
				zap.String("carrier", row.Carrier),
				zap.String("program", row.Program),
				zap.String("week", row.WeekEndingDate),
				zap.Float64("percent", row.AppliedPercent),
				zap.String("reason", row.Reason),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(applyFscCmd)
}
