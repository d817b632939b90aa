package applied

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/store"
	"github.com/sells-group/fsc-watch/pkg/eia"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "applied.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func groundBrackets() []model.ParsedBracket {
	return []model.ParsedBracket{
		{
			BracketID:        "3.00_3.49",
			IndexRange:       "$3.00 - $3.49",
			MinIndex:         model.Float64(3.00),
			MaxIndex:         model.Float64(3.49),
			SurchargePercent: model.Float64(12.0),
			SurchargeText:    "12.00%",
		},
		{
			BracketID:        "3.50_3.99",
			IndexRange:       "$3.50 - $3.99",
			MinIndex:         model.Float64(3.50),
			MaxIndex:         model.Float64(3.99),
			SurchargePercent: model.Float64(12.5),
			SurchargeText:    "12.50%",
		},
		{
			BracketID:        "over_4.00",
			IndexRange:       "Over $4.00",
			MinIndex:         model.Float64(4.00),
			SurchargePercent: model.Float64(13.0),
			SurchargeText:    "13.00%",
		},
	}
}

func seedSnapshot(t *testing.T, st *store.SQLiteStore, runID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.InsertRun(ctx, &model.RunManifest{
		SchemaVersion: model.SchemaVersion,
		RunID:         runID,
		OutDir:        "/runs",
		RunDir:        "/runs/" + runID,
		RegistryPath:  "sources.yaml",
		StartedAt:     "2026-08-24T12:00:00Z",
		EndedAt:       "2026-08-24T12:05:00Z",
	}))
	require.NoError(t, st.InsertSnapshot(ctx, runID, &model.Snapshot{
		SchemaVersion: model.SchemaVersion,
		Carrier:       "UPS",
		SourceID:      "ups_current_fuel_surcharge",
		CapturedAt:    "2026-08-24T12:00:00Z",
		SourceURL:     "https://www.ups.com/fuel",
		ContentType:   "text/html",
		EffectiveDate: model.String("2026-08-01"),
		Tables: []model.ParsedTable{
			{
				Program:       model.String("ground"),
				EffectiveDate: model.String("2026-08-01"),
				Brackets:      groundBrackets(),
			},
		},
		ParserDiagnostics: model.ParserDiagnostics{Messages: []string{}},
	}))
}

func TestApply_NewWeek(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedSnapshot(t, st, "run-1")

	_, err := st.InsertFuelPrices(ctx, []store.FuelPriceRow{
		{SeriesID: eia.DefaultDieselSeries, Period: "2026-08-24", Value: 3.712, Units: "$/GAL", Description: "diesel"},
	})
	require.NoError(t, err)

	rows, err := New(st).Apply(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "UPS", row.Carrier)
	assert.Equal(t, "ground", row.Program)
	assert.Equal(t, "2026-08-24", row.WeekEndingDate)
	assert.Equal(t, "2026-08-01", row.TableEffectiveDate)
	require.NotNil(t, row.BracketID)
	assert.Equal(t, "3.50_3.99", *row.BracketID)
	assert.InDelta(t, 12.5, row.AppliedPercent, 1e-9)
	assert.Equal(t, ReasonNew, row.Reason)
	require.NotNil(t, row.SourceRunID)
	assert.Equal(t, "run-1", *row.SourceRunID)

	persisted, err := st.ListApplied(ctx, "2026-08-24")
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestApply_ReasonAgainstPriorWeek(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedSnapshot(t, st, "run-1")

	// Prior week sat in the lower bracket of the same table.
	_, err := st.InsertApplied(ctx, []store.AppliedRow{{
		Carrier:            "UPS",
		Program:            "ground",
		WeekEndingDate:     "2026-08-17",
		TableEffectiveDate: "2026-08-01",
		BracketID:          model.String("3.00_3.49"),
		AppliedPercent:     12.0,
		Reason:             ReasonNew,
	}})
	require.NoError(t, err)

	_, err = st.InsertFuelPrices(ctx, []store.FuelPriceRow{
		{SeriesID: eia.DefaultDieselSeries, Period: "2026-08-24", Value: 3.712, Units: "$/GAL", Description: "diesel"},
	})
	require.NoError(t, err)

	rows, err := New(st).Apply(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ReasonFuelTierChange, rows[0].Reason)
}

func TestApply_NoFuelPrices(t *testing.T) {
	st := newTestStore(t)
	seedSnapshot(t, st, "run-1")

	rows, err := New(st).Apply(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPickApplicableTable(t *testing.T) {
	tables := []tableCandidate{
		{carrier: "ups", program: model.String("ground"), effectiveDate: model.String("2026-07-01")},
		{carrier: "ups", program: model.String("ground"), effectiveDate: model.String("2026-08-01")},
		{carrier: "ups", program: model.String("ground"), effectiveDate: model.String("2026-09-07")},
		{carrier: "ups", program: model.String("air"), effectiveDate: model.String("2026-08-01")},
		{carrier: "ups", program: nil, effectiveDate: model.String("2026-08-01")},
		{carrier: "fedex", program: model.String("ground"), effectiveDate: model.String("2026-08-15")},
	}

	got := pickApplicableTable(tables, "2026-08-24", "UPS", "ground")
	require.NotNil(t, got)
	assert.Equal(t, "2026-08-01", *got.effectiveDate)

	// The 09-07 table applies only once the week reaches it.
	got = pickApplicableTable(tables, "2026-09-07", "UPS", "ground")
	require.NotNil(t, got)
	assert.Equal(t, "2026-09-07", *got.effectiveDate)

	assert.Nil(t, pickApplicableTable(tables, "2026-06-01", "UPS", "ground"))
	assert.Nil(t, pickApplicableTable(tables, "2026-08-24", "DHL", "ground"))

	got = pickApplicableTable(tables, "2026-08-24", "FedEx", "ground")
	require.NotNil(t, got)
	assert.Equal(t, "2026-08-15", *got.effectiveDate)
}

func TestSelectBracket(t *testing.T) {
	brackets := groundBrackets()

	b := selectBracket(brackets, 3.25)
	require.NotNil(t, b)
	assert.Equal(t, "3.00_3.49", b.BracketID)

	// Upper bound is inclusive.
	b = selectBracket(brackets, 3.49)
	require.NotNil(t, b)
	assert.Equal(t, "3.00_3.49", b.BracketID)

	// Open-high bracket catches everything above.
	b = selectBracket(brackets, 9.99)
	require.NotNil(t, b)
	assert.Equal(t, "over_4.00", b.BracketID)

	assert.Nil(t, selectBracket(brackets, 2.50))
	assert.Nil(t, selectBracket(nil, 3.50))
}

func TestClassifyReason(t *testing.T) {
	prior := &store.AppliedRow{
		TableEffectiveDate: "2026-08-01",
		BracketID:          model.String("3.00_3.49"),
	}

	assert.Equal(t, ReasonNew, classifyReason(nil, "2026-08-01", "3.00_3.49"))
	assert.Equal(t, ReasonNoChange, classifyReason(prior, "2026-08-01", "3.00_3.49"))
	assert.Equal(t, ReasonFuelTierChange, classifyReason(prior, "2026-08-01", "3.50_3.99"))
	assert.Equal(t, ReasonTableChange, classifyReason(prior, "2026-09-07", "3.00_3.49"))
	assert.Equal(t, ReasonBoth, classifyReason(prior, "2026-09-07", "3.50_3.99"))
}
