package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fsc-watch/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	out_dir       TEXT NOT NULL,
	run_dir       TEXT NOT NULL,
	registry_path TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_sources (
	id             SERIAL PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES runs(run_id),
	source_id      TEXT NOT NULL,
	carrier        TEXT NOT NULL,
	mode           TEXT NOT NULL,
	status         TEXT NOT NULL,
	captured_at    TIMESTAMPTZ,
	snapshot_dir   TEXT,
	parsed_path    TEXT,
	discovery_path TEXT,
	changes_path   TEXT,
	error          JSONB
);

CREATE TABLE IF NOT EXISTS child_artifacts (
	id                  SERIAL PRIMARY KEY,
	run_id              TEXT NOT NULL REFERENCES runs(run_id),
	parent_source_id    TEXT NOT NULL,
	source_id           TEXT NOT NULL,
	url                 TEXT NOT NULL,
	captured_at         TIMESTAMPTZ NOT NULL,
	snapshot_dir        TEXT,
	parsed_path         TEXT,
	changes_path        TEXT,
	status              TEXT NOT NULL,
	effective_date_hint TEXT,
	error               JSONB
);

CREATE TABLE IF NOT EXISTS snapshots (
	id                 SERIAL PRIMARY KEY,
	run_id             TEXT NOT NULL REFERENCES runs(run_id),
	source_id          TEXT NOT NULL,
	captured_at        TIMESTAMPTZ NOT NULL,
	carrier            TEXT NOT NULL,
	source_url         TEXT NOT NULL,
	content_type       TEXT NOT NULL,
	effective_date     TEXT,
	parser_diagnostics JSONB NOT NULL,
	parsed_json        JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS fsc_tables (
	id             SERIAL PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES runs(run_id),
	source_id      TEXT NOT NULL,
	captured_at    TIMESTAMPTZ NOT NULL,
	table_index    INTEGER NOT NULL,
	program        TEXT,
	effective_date TEXT,
	bracket_count  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fsc_brackets (
	id                SERIAL PRIMARY KEY,
	run_id            TEXT NOT NULL REFERENCES runs(run_id),
	source_id         TEXT NOT NULL,
	captured_at       TIMESTAMPTZ NOT NULL,
	table_index       INTEGER NOT NULL,
	bracket_index     INTEGER NOT NULL,
	bracket_id        TEXT,
	index_range       TEXT,
	min_index         NUMERIC(12,4),
	max_index         NUMERIC(12,4),
	surcharge_percent NUMERIC(12,4),
	surcharge_text    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fsc_deltas (
	id                      SERIAL PRIMARY KEY,
	run_id                  TEXT NOT NULL REFERENCES runs(run_id),
	carrier                 TEXT NOT NULL,
	source_id               TEXT NOT NULL,
	captured_at             TIMESTAMPTZ NOT NULL,
	prior_captured_at       TIMESTAMPTZ,
	program                 TEXT,
	effective_date          TEXT,
	bracket_id              TEXT NOT NULL,
	index_range             TEXT,
	old_value               NUMERIC(12,4),
	new_value               NUMERIC(12,4),
	group_key               TEXT NOT NULL,
	is_publishable          BOOLEAN NOT NULL,
	publishability_reasons  JSONB NOT NULL,
	parser_structural_error BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS fuel_prices_raw (
	id          SERIAL PRIMARY KEY,
	series_id   TEXT NOT NULL,
	period      TEXT NOT NULL,
	value       NUMERIC(12,4) NOT NULL,
	units       TEXT NOT NULL,
	description TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS applied_fsc (
	id                   SERIAL PRIMARY KEY,
	carrier              TEXT NOT NULL,
	program              TEXT NOT NULL,
	week_ending_date     TEXT NOT NULL,
	table_effective_date TEXT NOT NULL,
	bracket_id           TEXT,
	bracket_range        TEXT,
	applied_percent      NUMERIC(8,4) NOT NULL,
	fuel_price           NUMERIC(12,4),
	fuel_index           TEXT,
	reason               TEXT NOT NULL,
	source_run_id        TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) InsertRun(ctx context.Context, manifest *model.RunManifest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (run_id, out_dir, run_dir, registry_path, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (run_id) DO NOTHING`,
		manifest.RunID, manifest.OutDir, manifest.RunDir, manifest.RegistryPath,
		manifest.StartedAt, manifest.EndedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", manifest.RunID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, out_dir, run_dir, registry_path, started_at::text, ended_at::text
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.OutDir, &r.RunDir, &r.RegistryPath, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) InsertRunSource(ctx context.Context, runID string, src model.ManifestSource) error {
	errJSON, err := marshalNullable(src.Error)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source error")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_sources
		 (run_id, source_id, carrier, mode, status, captured_at, snapshot_dir, parsed_path, discovery_path, changes_path, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (run_id, source_id, captured_at) DO NOTHING`,
		runID, src.SourceID, src.Carrier, src.Mode, string(src.Status),
		src.CapturedAt, src.SnapshotDir, src.ParsedPath, src.DiscoveryPath, src.ChangesPath, errJSON,
	)
	return eris.Wrapf(err, "postgres: insert run source %s/%s", runID, src.SourceID)
}

func (s *PostgresStore) InsertChildArtifact(ctx context.Context, runID, parentSourceID string, child model.ChildArtifact) error {
	errJSON, err := marshalNullable(child.Error)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal child error")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO child_artifacts
		 (run_id, parent_source_id, source_id, url, captured_at, snapshot_dir, parsed_path, changes_path, status, effective_date_hint, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (run_id, parent_source_id, source_id, url, captured_at) DO NOTHING`,
		runID, parentSourceID, child.SourceID, child.URL, child.CapturedAt,
		child.SnapshotDir, child.ParsedPath, child.ChangesPath, string(child.Status),
		child.EffectiveDateHint, errJSON,
	)
	return eris.Wrapf(err, "postgres: insert child artifact %s/%s", runID, child.SourceID)
}

func (s *PostgresStore) InsertSnapshot(ctx context.Context, runID string, snap *model.Snapshot) error {
	parsedJSON, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	diagJSON, err := json.Marshal(snap.ParserDiagnostics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal diagnostics")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots
		 (run_id, source_id, captured_at, carrier, source_url, content_type, effective_date, parser_diagnostics, parsed_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (run_id, source_id, captured_at) DO NOTHING`,
		runID, snap.SourceID, snap.CapturedAt, snap.Carrier, snap.SourceURL,
		snap.ContentType, snap.EffectiveDate, string(diagJSON), string(parsedJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert snapshot %s", snap.Key())
	}

	for ti, table := range snap.Tables {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO fsc_tables
			 (run_id, source_id, captured_at, table_index, program, effective_date, bracket_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (run_id, source_id, captured_at, table_index) DO NOTHING`,
			runID, snap.SourceID, snap.CapturedAt, ti, table.Program, table.EffectiveDate, len(table.Brackets),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert table %d for %s", ti, snap.Key())
		}
		for bi, b := range table.Brackets {
			_, err = s.pool.Exec(ctx,
				`INSERT INTO fsc_brackets
				 (run_id, source_id, captured_at, table_index, bracket_index, bracket_id, index_range, min_index, max_index, surcharge_percent, surcharge_text)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				 ON CONFLICT (run_id, source_id, captured_at, table_index, bracket_index) DO NOTHING`,
				runID, snap.SourceID, snap.CapturedAt, ti, bi,
				b.BracketID, b.IndexRange, b.MinIndex, b.MaxIndex, b.SurchargePercent, b.SurchargeText,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert bracket %d/%d for %s", ti, bi, snap.Key())
			}
		}
	}
	return nil
}

func (s *PostgresStore) LatestSnapshots(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (source_id) run_id, source_id, carrier, captured_at::text, parsed_json::text
		 FROM snapshots ORDER BY source_id, captured_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshots")
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		var parsedJSON string
		if err := rows.Scan(&r.RunID, &r.SourceID, &r.Carrier, &r.CapturedAt, &parsedJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		r.Snapshot = &model.Snapshot{}
		if err := json.Unmarshal([]byte(parsedJSON), r.Snapshot); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal snapshot %s", r.SourceID)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: latest snapshots iterate")
}

func (s *PostgresStore) InsertDeltas(ctx context.Context, runID string, deltas []model.DeltaRecord) (int, error) {
	inserted := 0
	for _, d := range deltas {
		reasonsJSON, err := json.Marshal(d.Publishability.Reasons)
		if err != nil {
			return inserted, eris.Wrap(err, "postgres: marshal reasons")
		}
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO fsc_deltas
			 (run_id, carrier, source_id, captured_at, prior_captured_at, program, effective_date, bracket_id, index_range, old_value, new_value, group_key, is_publishable, publishability_reasons, parser_structural_error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			 ON CONFLICT (run_id, source_id, captured_at, group_key, bracket_id) DO NOTHING`,
			runID, d.Carrier, d.SourceID, d.CapturedAt, d.PriorCapturedAt,
			d.Program, d.EffectiveDate, d.BracketID, d.IndexRange,
			d.OldValue, d.NewValue, d.GroupKey,
			d.Publishability.IsPublishable, string(reasonsJSON), d.ParserStructuralError,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: insert delta %s/%s", d.GroupKey, d.BracketID)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) InsertFuelPrices(ctx context.Context, rows []FuelPriceRow) (int, error) {
	inserted := 0
	for _, r := range rows {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO fuel_prices_raw (series_id, period, value, units, description)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (series_id, period) DO NOTHING`,
			r.SeriesID, r.Period, r.Value, r.Units, r.Description,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: insert fuel price %s/%s", r.SeriesID, r.Period)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) LatestFuelPrice(ctx context.Context, seriesID string) (*FuelPriceRow, error) {
	var r FuelPriceRow
	err := s.pool.QueryRow(ctx,
		`SELECT series_id, period, value::float8, units, description
		 FROM fuel_prices_raw WHERE series_id = $1 ORDER BY period DESC LIMIT 1`,
		seriesID,
	).Scan(&r.SeriesID, &r.Period, &r.Value, &r.Units, &r.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest fuel price %s", seriesID)
	}
	return &r, nil
}

func (s *PostgresStore) PriorApplied(ctx context.Context, carrier, program, beforeWeek string) (*AppliedRow, error) {
	var r AppliedRow
	err := s.pool.QueryRow(ctx,
		`SELECT carrier, program, week_ending_date, table_effective_date, bracket_id, bracket_range, applied_percent::float8, fuel_price::float8, fuel_index, reason, source_run_id
		 FROM applied_fsc
		 WHERE carrier = $1 AND program = $2 AND week_ending_date < $3
		 ORDER BY week_ending_date DESC LIMIT 1`,
		carrier, program, beforeWeek,
	).Scan(&r.Carrier, &r.Program, &r.WeekEndingDate, &r.TableEffectiveDate,
		&r.BracketID, &r.BracketRange, &r.AppliedPercent, &r.FuelPrice, &r.FuelIndex,
		&r.Reason, &r.SourceRunID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: prior applied %s/%s", carrier, program)
	}
	return &r, nil
}

func (s *PostgresStore) InsertApplied(ctx context.Context, rows []AppliedRow) (int, error) {
	inserted := 0
	for _, r := range rows {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO applied_fsc
			 (carrier, program, week_ending_date, table_effective_date, bracket_id, bracket_range, applied_percent, fuel_price, fuel_index, reason, source_run_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (carrier, program, week_ending_date) DO NOTHING`,
			r.Carrier, r.Program, r.WeekEndingDate, r.TableEffectiveDate,
			r.BracketID, r.BracketRange, r.AppliedPercent, r.FuelPrice, r.FuelIndex,
			r.Reason, r.SourceRunID,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: insert applied %s/%s/%s", r.Carrier, r.Program, r.WeekEndingDate)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) ListApplied(ctx context.Context, weekEndingDate string) ([]AppliedRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT carrier, program, week_ending_date, table_effective_date, bracket_id, bracket_range, applied_percent::float8, fuel_price::float8, fuel_index, reason, source_run_id
		 FROM applied_fsc WHERE week_ending_date = $1 ORDER BY carrier, program`,
		weekEndingDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list applied")
	}
	defer rows.Close()

	var out []AppliedRow
	for rows.Next() {
		var r AppliedRow
		if err := rows.Scan(&r.Carrier, &r.Program, &r.WeekEndingDate, &r.TableEffectiveDate,
			&r.BracketID, &r.BracketRange, &r.AppliedPercent, &r.FuelPrice, &r.FuelIndex,
			&r.Reason, &r.SourceRunID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan applied row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list applied iterate")
}

func (s *PostgresStore) LatestAppliedWeek(ctx context.Context) (*string, error) {
	var week string
	err := s.pool.QueryRow(ctx,
		`SELECT week_ending_date FROM applied_fsc ORDER BY week_ending_date DESC LIMIT 1`,
	).Scan(&week)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest applied week")
	}
	return &week, nil
}
