package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/store"
	"github.com/sells-group/fsc-watch/pkg/eia"
)

var fuelCmd = &cobra.Command{
	Use:   "fuel",
	Short: "Fetch weekly EIA fuel price series",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("fuel"); err != nil {
			return err
		}
		ctx := cmd.Context()

		seriesIDs, _ := cmd.Flags().GetStringSlice("series")
		if len(seriesIDs) == 0 {
			seriesIDs = []string{cfg.EIA.DieselSeries, cfg.EIA.JetSeries}
		}
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		length, _ := cmd.Flags().GetInt("length")
		outPath, _ := cmd.Flags().GetString("out")
		persist, _ := cmd.Flags().GetBool("persist")

		client := eia.NewClient(cfg.EIA.Key)
		results := make(map[string][]eia.SeriesRow, len(seriesIDs))
		for _, seriesID := range seriesIDs {
			rows, err := client.FetchSeries(ctx, eia.SeriesParams{
				SeriesID: seriesID,
				Start:    start,
				End:      end,
				Length:   length,
			})
			if err != nil {
				return eris.Wrapf(err, "fuel: series %s", seriesID)
			}
			results[seriesID] = rows
		}

		if persist {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			inserted := 0
			for seriesID, rows := range results {
				priceRows := make([]store.FuelPriceRow, 0, len(rows))
				for _, row := range rows {
					priceRows = append(priceRows, store.FuelPriceRow{
						SeriesID: seriesID,
						Period:   row.Period,
						Value:    row.Value,
						Units:    "$/GAL",
					})
				}
				n, err := st.InsertFuelPrices(ctx, priceRows)
				if err != nil {
					return err
				}
				inserted += n
			}
			zap.L().Info("persisted fuel prices", zap.Int("inserted", inserted))
		}

		if outPath != "" {
			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return eris.Wrap(err, "fuel: marshal results")
			}
			if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
				return eris.Wrapf(err, "fuel: write %s", outPath)
			}
			zap.L().Info("wrote fuel data", zap.String("out", outPath))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	fuelCmd.Flags().StringSlice("series", nil, "series ids (default diesel and jet from config)")
	fuelCmd.Flags().String("start", "", "start period (YYYY-MM-DD)")
	fuelCmd.Flags().String("end", "", "end period (YYYY-MM-DD)")
	fuelCmd.Flags().Int("length", 0, "max observations per series")
	fuelCmd.Flags().String("out", "", "write results to a JSON file instead of stdout")
	fuelCmd.Flags().Bool("persist", false, "insert observations into the store")
	rootCmd.AddCommand(fuelCmd)
}
