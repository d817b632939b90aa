package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestBuild_Empty(t *testing.T) {
	st := newTestStore(t)
	out, err := Build(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "No applied surcharge data available.\n", out)
}

func TestBuild(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.InsertApplied(ctx, []store.AppliedRow{
		{
			Carrier:            "UPS",
			Program:            "ground",
			WeekEndingDate:     "2026-08-17",
			TableEffectiveDate: "2026-08-01",
			BracketID:          model.String("3.00_3.49"),
			BracketRange:       model.String("$3.00 - $3.49"),
			AppliedPercent:     12.0,
			FuelPrice:          model.Float64(3.412),
			FuelIndex:          model.String("PET.EMD_EPD2D_PTE_NUS_DPG.W"),
			Reason:             "new",
		},
		{
			Carrier:            "UPS",
			Program:            "ground",
			WeekEndingDate:     "2026-08-24",
			TableEffectiveDate: "2026-08-01",
			BracketID:          model.String("3.50_3.99"),
			BracketRange:       model.String("$3.50 - $3.99"),
			AppliedPercent:     12.5,
			FuelPrice:          model.Float64(3.712),
			FuelIndex:          model.String("PET.EMD_EPD2D_PTE_NUS_DPG.W"),
			Reason:             "fuel_tier_change",
		},
	})
	require.NoError(t, err)

	require.NoError(t, st.InsertRun(ctx, &model.RunManifest{
		SchemaVersion: model.SchemaVersion,
		RunID:         "run-1",
		OutDir:        "/runs",
		RunDir:        "/runs/run-1",
		RegistryPath:  "sources.yaml",
		StartedAt:     "2026-08-24T12:00:00Z",
		EndedAt:       "2026-08-24T12:05:00Z",
	}))
	require.NoError(t, st.InsertSnapshot(ctx, "run-1", &model.Snapshot{
		SchemaVersion: model.SchemaVersion,
		Carrier:       "UPS",
		SourceID:      "ups_updates_pdf",
		CapturedAt:    "2026-08-24T12:00:00Z",
		SourceURL:     "https://www.ups.com/doc.pdf",
		ContentType:   "application/pdf",
		EffectiveDate: model.String("2026-09-07"),
		Tables: []model.ParsedTable{{
			Program:       model.String("ground"),
			EffectiveDate: model.String("2026-09-07"),
			Brackets: []model.ParsedBracket{{
				BracketID:        "3.50_3.99",
				IndexRange:       "$3.50 - $3.99",
				MinIndex:         model.Float64(3.50),
				MaxIndex:         model.Float64(3.99),
				SurchargePercent: model.Float64(13.0),
				SurchargeText:    "13.00%",
			}},
		}},
		ParserDiagnostics: model.ParserDiagnostics{Messages: []string{}},
	}))

	out, err := Build(ctx, st)
	require.NoError(t, err)

	assert.Contains(t, out, "# Weekly Carrier Pricing Events (2026-08-24)")
	assert.Contains(t, out, "- FSC | UPS | ground | Week: 2026-08-24 | cause: fuel_tier_change")
	assert.Contains(t, out, "old_charge: 12.00% | new_charge: 12.50% | bracket: $3.50 - $3.99 | table_eff: 2026-08-01")
	assert.Contains(t, out, "fuel: PET.EMD_EPD2D_PTE_NUS_DPG.W $3.712")
	assert.Contains(t, out, "## Upcoming Changes")
	assert.Contains(t, out, "- UPS | ground | effective: 2026-09-07 | source: ups_updates_pdf")
	// the 08-17 week is prior context, not an event of its own
	assert.NotContains(t, out, "Week: 2026-08-17")
}
