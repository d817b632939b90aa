// Package store persists runs, snapshots, fuel prices and applied
// surcharges behind one interface with sqlite and postgres drivers.
package store

import (
	"context"

	"github.com/sells-group/fsc-watch/internal/model"
)

// RunRow is one persisted run header.
type RunRow struct {
	RunID        string `json:"run_id"`
	OutDir       string `json:"out_dir"`
	RunDir       string `json:"run_dir"`
	RegistryPath string `json:"registry_path"`
	StartedAt    string `json:"started_at"`
	EndedAt      string `json:"ended_at"`
}

// FuelPriceRow is one weekly fuel price observation.
type FuelPriceRow struct {
	SeriesID    string  `json:"series_id"`
	Period      string  `json:"period"`
	Value       float64 `json:"value"`
	Units       string  `json:"units"`
	Description string  `json:"description"`
}

// SnapshotRow pairs a persisted snapshot with the run that produced it.
type SnapshotRow struct {
	RunID      string
	SourceID   string
	Carrier    string
	CapturedAt string
	Snapshot   *model.Snapshot
}

// AppliedRow is one (carrier, program, week) applied-surcharge decision.
type AppliedRow struct {
	Carrier            string   `json:"carrier"`
	Program            string   `json:"program"`
	WeekEndingDate     string   `json:"week_ending_date"`
	TableEffectiveDate string   `json:"table_effective_date"`
	BracketID          *string  `json:"bracket_id"`
	BracketRange       *string  `json:"bracket_range"`
	AppliedPercent     float64  `json:"applied_percent"`
	FuelPrice          *float64 `json:"fuel_price"`
	FuelIndex          *string  `json:"fuel_index"`
	Reason             string   `json:"reason"`
	SourceRunID        *string  `json:"source_run_id"`
}

// Store defines the persistence surface of the pipeline.
type Store interface {
	// Runs
	InsertRun(ctx context.Context, manifest *model.RunManifest) error
	ListRuns(ctx context.Context, limit int) ([]RunRow, error)
	InsertRunSource(ctx context.Context, runID string, src model.ManifestSource) error
	InsertChildArtifact(ctx context.Context, runID, parentSourceID string, child model.ChildArtifact) error

	// Snapshots (also derives fsc_tables and fsc_brackets rows)
	InsertSnapshot(ctx context.Context, runID string, snap *model.Snapshot) error
	LatestSnapshots(ctx context.Context) ([]SnapshotRow, error)

	// Deltas
	InsertDeltas(ctx context.Context, runID string, deltas []model.DeltaRecord) (int, error)

	// Fuel prices
	InsertFuelPrices(ctx context.Context, rows []FuelPriceRow) (int, error)
	LatestFuelPrice(ctx context.Context, seriesID string) (*FuelPriceRow, error)

	// Applied surcharges
	PriorApplied(ctx context.Context, carrier, program, beforeWeek string) (*AppliedRow, error)
	InsertApplied(ctx context.Context, rows []AppliedRow) (int, error)
	ListApplied(ctx context.Context, weekEndingDate string) ([]AppliedRow, error)
	LatestAppliedWeek(ctx context.Context) (*string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
