package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/fsc-watch/internal/store"
)

var persistCmd = &cobra.Command{
	Use:   "persist <run-dir>",
	Short: "Load a run directory into the relational store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("persist"); err != nil {
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

		return store.PersistRun(ctx, st, args[0])
	},
}

func init() {
	rootCmd.AddCommand(persistCmd)
}
