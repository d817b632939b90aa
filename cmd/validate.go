package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate <run-dir>",
	Short: "Re-normalize the stored extraction responses of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registryPath, _ := cmd.Flags().GetString("registry")

		processed, err := pipeline.Revalidate(pipeline.RevalidateParams{
			RunDir:       args[0],
			RegistryPath: registryPath,
		})
		if err != nil {
			return eris.Wrap(err, "validate")
		}

		zap.L().Info("validate finished",
			zap.String("run_dir", args[0]),
			zap.Int("responses", processed),
		)
		return nil
	},
}

func init() {
	validateCmd.Flags().String("registry", "", "registry path (default from the run manifest)")
	rootCmd.AddCommand(validateCmd)
}
