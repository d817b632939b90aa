package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fsc-watch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	out_dir       TEXT NOT NULL,
	run_dir       TEXT NOT NULL,
	registry_path TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	ended_at      TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_sources (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL REFERENCES runs(run_id),
	source_id      TEXT NOT NULL,
	carrier        TEXT NOT NULL,
	mode           TEXT NOT NULL,
	status         TEXT NOT NULL,
	captured_at    TEXT,
	snapshot_dir   TEXT,
	parsed_path    TEXT,
	discovery_path TEXT,
	changes_path   TEXT,
	error          TEXT
);

CREATE TABLE IF NOT EXISTS child_artifacts (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id              TEXT NOT NULL REFERENCES runs(run_id),
	parent_source_id    TEXT NOT NULL,
	source_id           TEXT NOT NULL,
	url                 TEXT NOT NULL,
	captured_at         TEXT NOT NULL,
	snapshot_dir        TEXT,
	parsed_path         TEXT,
	changes_path        TEXT,
	status              TEXT NOT NULL,
	effective_date_hint TEXT,
	error               TEXT
);

CREATE TABLE IF NOT EXISTS snapshots (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id             TEXT NOT NULL REFERENCES runs(run_id),
	source_id          TEXT NOT NULL,
	captured_at        TEXT NOT NULL,
	carrier            TEXT NOT NULL,
	source_url         TEXT NOT NULL,
	content_type       TEXT NOT NULL,
	effective_date     TEXT,
	parser_diagnostics TEXT NOT NULL,
	parsed_json        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fsc_tables (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL REFERENCES runs(run_id),
	source_id      TEXT NOT NULL,
	captured_at    TEXT NOT NULL,
	table_index    INTEGER NOT NULL,
	program        TEXT,
	effective_date TEXT,
	bracket_count  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fsc_brackets (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id            TEXT NOT NULL REFERENCES runs(run_id),
	source_id         TEXT NOT NULL,
	captured_at       TEXT NOT NULL,
	table_index       INTEGER NOT NULL,
	bracket_index     INTEGER NOT NULL,
	bracket_id        TEXT,
	index_range       TEXT,
	min_index         REAL,
	max_index         REAL,
	surcharge_percent REAL,
	surcharge_text    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fsc_deltas (
	id                      INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id                  TEXT NOT NULL REFERENCES runs(run_id),
	carrier                 TEXT NOT NULL,
	source_id               TEXT NOT NULL,
	captured_at             TEXT NOT NULL,
	prior_captured_at       TEXT,
	program                 TEXT,
	effective_date          TEXT,
	bracket_id              TEXT NOT NULL,
	index_range             TEXT,
	old_value               REAL,
	new_value               REAL,
	group_key               TEXT NOT NULL,
	is_publishable          INTEGER NOT NULL,
	publishability_reasons  TEXT NOT NULL,
	parser_structural_error INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fuel_prices_raw (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	series_id   TEXT NOT NULL,
	period      TEXT NOT NULL,
	value       REAL NOT NULL,
	units       TEXT NOT NULL,
	description TEXT NOT NULL,
	captured_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS applied_fsc (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	carrier              TEXT NOT NULL,
	program              TEXT NOT NULL,
	week_ending_date     TEXT NOT NULL,
	table_effective_date TEXT NOT NULL,
	bracket_id           TEXT,
	bracket_range        TEXT,
	applied_percent      REAL NOT NULL,
	fuel_price           REAL,
	fuel_index           TEXT,
	reason               TEXT NOT NULL,
	source_run_id        TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS run_sources_unique_idx ON run_sources(run_id, source_id, captured_at);
CREATE INDEX IF NOT EXISTS run_sources_run_idx ON run_sources(run_id);
CREATE UNIQUE INDEX IF NOT EXISTS child_artifacts_unique_idx ON child_artifacts(run_id, parent_source_id, source_id, url, captured_at);
CREATE UNIQUE INDEX IF NOT EXISTS snapshots_unique_idx ON snapshots(run_id, source_id, captured_at);
CREATE INDEX IF NOT EXISTS snapshots_source_idx ON snapshots(source_id, captured_at);
CREATE UNIQUE INDEX IF NOT EXISTS fsc_tables_unique_idx ON fsc_tables(run_id, source_id, captured_at, table_index);
CREATE UNIQUE INDEX IF NOT EXISTS fsc_brackets_unique_idx ON fsc_brackets(run_id, source_id, captured_at, table_index, bracket_index);
CREATE UNIQUE INDEX IF NOT EXISTS fsc_deltas_unique_idx ON fsc_deltas(run_id, source_id, captured_at, group_key, bracket_id);
CREATE UNIQUE INDEX IF NOT EXISTS fuel_prices_raw_unique_idx ON fuel_prices_raw(series_id, period);
CREATE UNIQUE INDEX IF NOT EXISTS applied_fsc_unique_idx ON applied_fsc(carrier, program, week_ending_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertRun(ctx context.Context, manifest *model.RunManifest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (run_id, out_dir, run_dir, registry_path, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		manifest.RunID, manifest.OutDir, manifest.RunDir, manifest.RegistryPath,
		manifest.StartedAt, manifest.EndedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", manifest.RunID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, out_dir, run_dir, registry_path, started_at, ended_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.OutDir, &r.RunDir, &r.RegistryPath, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) InsertRunSource(ctx context.Context, runID string, src model.ManifestSource) error {
	errJSON, err := marshalNullable(src.Error)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source error")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO run_sources
		 (run_id, source_id, carrier, mode, status, captured_at, snapshot_dir, parsed_path, discovery_path, changes_path, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, src.SourceID, src.Carrier, src.Mode, string(src.Status),
		src.CapturedAt, src.SnapshotDir, src.ParsedPath, src.DiscoveryPath, src.ChangesPath, errJSON,
	)
	return eris.Wrapf(err, "sqlite: insert run source %s/%s", runID, src.SourceID)
}

func (s *SQLiteStore) InsertChildArtifact(ctx context.Context, runID, parentSourceID string, child model.ChildArtifact) error {
	errJSON, err := marshalNullable(child.Error)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal child error")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO child_artifacts
		 (run_id, parent_source_id, source_id, url, captured_at, snapshot_dir, parsed_path, changes_path, status, effective_date_hint, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, parentSourceID, child.SourceID, child.URL, child.CapturedAt,
		child.SnapshotDir, child.ParsedPath, child.ChangesPath, string(child.Status),
		child.EffectiveDateHint, errJSON,
	)
	return eris.Wrapf(err, "sqlite: insert child artifact %s/%s", runID, child.SourceID)
}

func (s *SQLiteStore) InsertSnapshot(ctx context.Context, runID string, snap *model.Snapshot) error {
	parsedJSON, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	diagJSON, err := json.Marshal(snap.ParserDiagnostics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal diagnostics")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO snapshots
		 (run_id, source_id, captured_at, carrier, source_url, content_type, effective_date, parser_diagnostics, parsed_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, snap.SourceID, snap.CapturedAt, snap.Carrier, snap.SourceURL,
		snap.ContentType, snap.EffectiveDate, string(diagJSON), string(parsedJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert snapshot %s", snap.Key())
	}

	for ti, table := range snap.Tables {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO fsc_tables
			 (run_id, source_id, captured_at, table_index, program, effective_date, bracket_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, snap.SourceID, snap.CapturedAt, ti, table.Program, table.EffectiveDate, len(table.Brackets),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert table %d for %s", ti, snap.Key())
		}
		for bi, b := range table.Brackets {
			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO fsc_brackets
				 (run_id, source_id, captured_at, table_index, bracket_index, bracket_id, index_range, min_index, max_index, surcharge_percent, surcharge_text)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, snap.SourceID, snap.CapturedAt, ti, bi,
				b.BracketID, b.IndexRange, b.MinIndex, b.MaxIndex, b.SurchargePercent, b.SurchargeText,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert bracket %d/%d for %s", ti, bi, snap.Key())
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit snapshot")
}

func (s *SQLiteStore) LatestSnapshots(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.run_id, s.source_id, s.carrier, s.captured_at, s.parsed_json
		 FROM snapshots s
		 JOIN (
			SELECT source_id, MAX(captured_at) AS captured_at
			FROM snapshots GROUP BY source_id
		 ) latest ON s.source_id = latest.source_id AND s.captured_at = latest.captured_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshots")
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		var parsedJSON string
		if err := rows.Scan(&r.RunID, &r.SourceID, &r.Carrier, &r.CapturedAt, &parsedJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		r.Snapshot = &model.Snapshot{}
		if err := json.Unmarshal([]byte(parsedJSON), r.Snapshot); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal snapshot %s", r.SourceID)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: latest snapshots iterate")
}

func (s *SQLiteStore) InsertDeltas(ctx context.Context, runID string, deltas []model.DeltaRecord) (int, error) {
	if len(deltas) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	inserted := 0
	for _, d := range deltas {
		reasonsJSON, err := json.Marshal(d.Publishability.Reasons)
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: marshal reasons")
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO fsc_deltas
			 (run_id, carrier, source_id, captured_at, prior_captured_at, program, effective_date, bracket_id, index_range, old_value, new_value, group_key, is_publishable, publishability_reasons, parser_structural_error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, d.Carrier, d.SourceID, d.CapturedAt, d.PriorCapturedAt,
			d.Program, d.EffectiveDate, d.BracketID, d.IndexRange,
			d.OldValue, d.NewValue, d.GroupKey,
			boolToInt(d.Publishability.IsPublishable), string(reasonsJSON),
			boolToInt(d.ParserStructuralError),
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert delta %s/%s", d.GroupKey, d.BracketID)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	return inserted, eris.Wrap(tx.Commit(), "sqlite: commit deltas")
}

func (s *SQLiteStore) InsertFuelPrices(ctx context.Context, rows []FuelPriceRow) (int, error) {
	inserted := 0
	for _, r := range rows {
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO fuel_prices_raw (series_id, period, value, units, description)
			 VALUES (?, ?, ?, ?, ?)`,
			r.SeriesID, r.Period, r.Value, r.Units, r.Description,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert fuel price %s/%s", r.SeriesID, r.Period)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	return inserted, nil
}

func (s *SQLiteStore) LatestFuelPrice(ctx context.Context, seriesID string) (*FuelPriceRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT series_id, period, value, units, description
		 FROM fuel_prices_raw WHERE series_id = ? ORDER BY period DESC LIMIT 1`,
		seriesID,
	)
	var r FuelPriceRow
	err := row.Scan(&r.SeriesID, &r.Period, &r.Value, &r.Units, &r.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest fuel price %s", seriesID)
	}
	return &r, nil
}

func (s *SQLiteStore) PriorApplied(ctx context.Context, carrier, program, beforeWeek string) (*AppliedRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT carrier, program, week_ending_date, table_effective_date, bracket_id, bracket_range, applied_percent, fuel_price, fuel_index, reason, source_run_id
		 FROM applied_fsc
		 WHERE carrier = ? AND program = ? AND week_ending_date < ?
		 ORDER BY week_ending_date DESC LIMIT 1`,
		carrier, program, beforeWeek,
	)
	return scanApplied(row)
}

func (s *SQLiteStore) InsertApplied(ctx context.Context, rows []AppliedRow) (int, error) {
	inserted := 0
	for _, r := range rows {
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO applied_fsc
			 (carrier, program, week_ending_date, table_effective_date, bracket_id, bracket_range, applied_percent, fuel_price, fuel_index, reason, source_run_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Carrier, r.Program, r.WeekEndingDate, r.TableEffectiveDate,
			r.BracketID, r.BracketRange, r.AppliedPercent, r.FuelPrice, r.FuelIndex,
			r.Reason, r.SourceRunID,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert applied %s/%s/%s", r.Carrier, r.Program, r.WeekEndingDate)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	return inserted, nil
}

func (s *SQLiteStore) ListApplied(ctx context.Context, weekEndingDate string) ([]AppliedRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT carrier, program, week_ending_date, table_effective_date, bracket_id, bracket_range, applied_percent, fuel_price, fuel_index, reason, source_run_id
		 FROM applied_fsc WHERE week_ending_date = ? ORDER BY carrier, program`,
		weekEndingDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list applied")
	}
	defer rows.Close()

	var out []AppliedRow
	for rows.Next() {
		r, err := scanApplied(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list applied iterate")
}

func (s *SQLiteStore) LatestAppliedWeek(ctx context.Context) (*string, error) {
	var week string
	err := s.db.QueryRowContext(ctx,
		`SELECT week_ending_date FROM applied_fsc ORDER BY week_ending_date DESC LIMIT 1`,
	).Scan(&week)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest applied week")
	}
	return &week, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanApplied(row scannable) (*AppliedRow, error) {
	var r AppliedRow
	err := row.Scan(&r.Carrier, &r.Program, &r.WeekEndingDate, &r.TableEffectiveDate,
		&r.BracketID, &r.BracketRange, &r.AppliedPercent, &r.FuelPrice, &r.FuelIndex,
		&r.Reason, &r.SourceRunID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan applied row")
	}
	return &r, nil
}

func marshalNullable[T any](v *T) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
