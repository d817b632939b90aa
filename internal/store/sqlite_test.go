package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fsc-watch/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testManifest(runID string) *model.RunManifest {
	return &model.RunManifest{
		SchemaVersion: model.SchemaVersion,
		RunID:         runID,
		OutDir:        "/data/runs",
		RunDir:        "/data/runs/" + runID,
		RegistryPath:  "config/sources.yaml",
		StartedAt:     "2026-08-24T12:00:00Z",
		EndedAt:       "2026-08-24T12:05:00Z",
	}
}

func testSnapshot(capturedAt string) *model.Snapshot {
	return &model.Snapshot{
		SchemaVersion: model.SchemaVersion,
		Carrier:       "ups",
		SourceID:      "ups_current_fuel_surcharge",
		CapturedAt:    capturedAt,
		SourceURL:     "https://www.ups.com/fuel",
		ContentType:   "text/html",
		EffectiveDate: model.String("2026-09-01"),
		Tables: []model.ParsedTable{
			{
				Program:       model.String("ground"),
				EffectiveDate: model.String("2026-09-01"),
				Brackets: []model.ParsedBracket{
					{
						BracketID:        "1.50_1.99",
						IndexRange:       "$1.50 - $1.99",
						MinIndex:         model.Float64(1.50),
						MaxIndex:         model.Float64(1.99),
						SurchargePercent: model.Float64(12.5),
						SurchargeText:    "12.50%",
					},
					{
						BracketID:        "2.00_2.49",
						IndexRange:       "$2.00 - $2.49",
						MinIndex:         model.Float64(2.00),
						MaxIndex:         model.Float64(2.49),
						SurchargePercent: model.Float64(13.0),
						SurchargeText:    "13.00%",
					},
				},
			},
		},
		ParserDiagnostics: model.ParserDiagnostics{Messages: []string{}},
	}
}

func TestSQLite_Runs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertRun(ctx, testManifest("run-1")))
	// Idempotent on re-persist of the same run dir.
	require.NoError(t, st.InsertRun(ctx, testManifest("run-1")))
	require.NoError(t, st.InsertRun(ctx, testManifest("run-2")))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "config/sources.yaml", runs[0].RegistryPath)
}

func TestSQLite_RunSources(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.InsertRun(ctx, testManifest("run-1")))

	capturedAt := "2026-08-24T12:00:00Z"
	src := model.ManifestSource{
		SourceID:   "ups_current_fuel_surcharge",
		Carrier:    "ups",
		Mode:       "DIRECT",
		Status:     model.SourceStatusSuccess,
		CapturedAt: &capturedAt,
	}
	require.NoError(t, st.InsertRunSource(ctx, "run-1", src))
	require.NoError(t, st.InsertRunSource(ctx, "run-1", src))

	failed := model.ManifestSource{
		SourceID: "fedex_current_fuel_surcharge",
		Carrier:  "fedex",
		Mode:     "DIRECT",
		Status:   model.SourceStatusError,
		Error:    &model.ManifestError{Message: "fetch failed (503)"},
	}
	require.NoError(t, st.InsertRunSource(ctx, "run-1", failed))
}

func TestSQLite_ChildArtifacts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.InsertRun(ctx, testManifest("run-1")))

	hint := "2026-09-01"
	child := model.ChildArtifact{
		SourceID:          "ups_updates_pdf",
		URL:               "https://www.ups.com/assets/fsc-update.pdf",
		CapturedAt:        "2026-08-24T12:01:00Z",
		SnapshotDir:       "snapshots/ups/ups_updates_pdf/2026-08-24T12:01:00Z",
		Status:            model.SourceStatusSuccess,
		EffectiveDateHint: &hint,
	}
	require.NoError(t, st.InsertChildArtifact(ctx, "run-1", "ups_updates_index", child))
	require.NoError(t, st.InsertChildArtifact(ctx, "run-1", "ups_updates_index", child))
}

func TestSQLite_Snapshots(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.InsertRun(ctx, testManifest("run-1")))

	older := testSnapshot("2026-08-17T12:00:00Z")
	newer := testSnapshot("2026-08-24T12:00:00Z")
	require.NoError(t, st.InsertSnapshot(ctx, "run-1", older))
	require.NoError(t, st.InsertSnapshot(ctx, "run-1", newer))
	// re-insert is a no-op
	require.NoError(t, st.InsertSnapshot(ctx, "run-1", newer))

	latest, err := st.LatestSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "2026-08-24T12:00:00Z", latest[0].CapturedAt)
	assert.Equal(t, "ups", latest[0].Carrier)
	require.Len(t, latest[0].Snapshot.Tables, 1)
	assert.Len(t, latest[0].Snapshot.Tables[0].Brackets, 2)
}

func TestSQLite_Deltas(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.InsertRun(ctx, testManifest("run-1")))

	d := model.DeltaRecord{
		SchemaVersion:  model.SchemaVersion,
		Carrier:        "ups",
		SourceID:       "ups_current_fuel_surcharge",
		CapturedAt:     "2026-08-24T12:00:00Z",
		Program:        model.String("ground"),
		EffectiveDate:  model.String("2026-09-01"),
		BracketID:      "1.50_1.99",
		IndexRange:     model.String("$1.50 - $1.99"),
		OldValue:       model.Float64(12.0),
		NewValue:       model.Float64(12.5),
		GroupKey:       "2026-fuel_surcharge-2026-09-01-ups-ground",
		Publishability: model.Publishability{IsPublishable: true, Reasons: []string{}},
	}

	n, err := st.InsertDeltas(ctx, "run-1", []model.DeltaRecord{d})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Same record again: conflict target keeps it out.
	n, err = st.InsertDeltas(ctx, "run-1", []model.DeltaRecord{d})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = st.InsertDeltas(ctx, "run-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_FuelPrices(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rows := []FuelPriceRow{
		{SeriesID: "PET.EMD_EPD2D_PTE_NUS_DPG.W", Period: "2026-08-17", Value: 3.689, Units: "$/GAL", Description: "diesel"},
		{SeriesID: "PET.EMD_EPD2D_PTE_NUS_DPG.W", Period: "2026-08-24", Value: 3.712, Units: "$/GAL", Description: "diesel"},
	}
	n, err := st.InsertFuelPrices(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = st.InsertFuelPrices(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	latest, err := st.LatestFuelPrice(ctx, "PET.EMD_EPD2D_PTE_NUS_DPG.W")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2026-08-24", latest.Period)
	assert.InDelta(t, 3.712, latest.Value, 1e-9)

	missing, err := st.LatestFuelPrice(ctx, "PET.EER_EPJK_PF4_RGC_DPG.W")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_Applied(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	week1 := AppliedRow{
		Carrier:            "UPS",
		Program:            "ground",
		WeekEndingDate:     "2026-08-17",
		TableEffectiveDate: "2026-08-01",
		BracketID:          model.String("1.50_1.99"),
		BracketRange:       model.String("$1.50 - $1.99"),
		AppliedPercent:     12.0,
		FuelPrice:          model.Float64(3.689),
		FuelIndex:          model.String("PET.EMD_EPD2D_PTE_NUS_DPG.W"),
		Reason:             "new",
	}
	n, err := st.InsertApplied(ctx, []AppliedRow{week1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	week2 := week1
	week2.WeekEndingDate = "2026-08-24"
	week2.AppliedPercent = 12.5
	week2.Reason = "fuel_tier_change"
	n, err = st.InsertApplied(ctx, []AppliedRow{week2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Re-run for the same week does not overwrite.
	n, err = st.InsertApplied(ctx, []AppliedRow{week2})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	prior, err := st.PriorApplied(ctx, "UPS", "ground", "2026-08-24")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "2026-08-17", prior.WeekEndingDate)
	assert.InDelta(t, 12.0, prior.AppliedPercent, 1e-9)

	none, err := st.PriorApplied(ctx, "UPS", "ground", "2026-08-17")
	require.NoError(t, err)
	assert.Nil(t, none)

	listed, err := st.ListApplied(ctx, "2026-08-24")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "fuel_tier_change", listed[0].Reason)
	require.NotNil(t, listed[0].FuelPrice)
}
