package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fsc-watch/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_InsertRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "/data/runs", "/data/runs/run-1", "config/sources.yaml",
			"2026-08-24T12:00:00Z", "2026-08-24T12:05:00Z").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertRun(context.Background(), testManifest("run-1"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	snap := testSnapshot("2026-08-24T12:00:00Z")

	mock.ExpectExec(`INSERT INTO snapshots`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO fsc_tables`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO fsc_brackets`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO fsc_brackets`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertSnapshot(context.Background(), "run-1", snap)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	snap := testSnapshot("2026-08-24T12:00:00Z")
	parsedJSON, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT DISTINCT ON \(source_id\)`).
		WillReturnRows(pgxmock.NewRows([]string{"run_id", "source_id", "carrier", "captured_at", "parsed_json"}).
			AddRow("run-1", snap.SourceID, snap.Carrier, snap.CapturedAt, string(parsedJSON)))

	rows, err := s.LatestSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ups_current_fuel_surcharge", rows[0].SourceID)
	require.Len(t, rows[0].Snapshot.Tables, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertDeltas_ConflictIgnored(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	d := model.DeltaRecord{
		SchemaVersion:  model.SchemaVersion,
		Carrier:        "ups",
		SourceID:       "src",
		CapturedAt:     "2026-08-24T12:00:00Z",
		BracketID:      "1.50_1.99",
		GroupKey:       "2026-fuel_surcharge-2026-09-01-ups-ground",
		Publishability: model.Publishability{IsPublishable: true, Reasons: []string{}},
	}

	mock.ExpectExec(`INSERT INTO fsc_deltas`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	n, err := s.InsertDeltas(context.Background(), "run-1", []model.DeltaRecord{d})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestFuelPrice_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT series_id, period, value`).
		WithArgs("PET.EMD_EPD2D_PTE_NUS_DPG.W").
		WillReturnError(pgx.ErrNoRows)

	row, err := s.LatestFuelPrice(context.Background(), "PET.EMD_EPD2D_PTE_NUS_DPG.W")
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PriorApplied_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT carrier, program, week_ending_date`).
		WithArgs("UPS", "ground", "2026-08-24").
		WillReturnError(pgx.ErrNoRows)

	row, err := s.PriorApplied(context.Background(), "UPS", "ground", "2026-08-24")
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnError(assert.AnError)

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: migrate")
}
