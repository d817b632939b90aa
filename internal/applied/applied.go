// Package applied joins the latest persisted surcharge tables with the
// latest weekly fuel prices and decides, per carrier and program, which
// bracket applies and why it changed.
package applied

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/store"
	"github.com/sells-group/fsc-watch/pkg/eia"
)

// Change reasons recorded on applied rows.
const (
	ReasonNew            = "new"
	ReasonNoChange       = "no_change"
	ReasonTableChange    = "table_change"
	ReasonFuelTierChange = "fuel_tier_change"
	ReasonBoth           = "both"
)

var carriers = []string{"UPS", "FedEx"}

// fuelPrograms maps a fuel series to the program it drives.
var fuelPrograms = map[string]string{
	eia.DefaultDieselSeries: "ground",
	eia.DefaultJetSeries:    "air",
}

// tableCandidate is one flattened surcharge table from a snapshot.
type tableCandidate struct {
	carrier       string
	program       *string
	effectiveDate *string
	brackets      []model.ParsedBracket
	runID         string
}

// Engine computes applied surcharges against a store.
type Engine struct {
	store store.Store
}

// New creates an Engine.
func New(st store.Store) *Engine {
	return &Engine{store: st}
}

// Apply computes and persists applied rows for the latest fuel week of
// each series. Rows for already-decided weeks are left untouched.
func (e *Engine) Apply(ctx context.Context) ([]store.AppliedRow, error) {
	snapshots, err := e.store.LatestSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	tables := flattenTables(snapshots)

	var results []store.AppliedRow
	for _, seriesID := range sortedSeries() {
		program := fuelPrograms[seriesID]
		fuel, err := e.store.LatestFuelPrice(ctx, seriesID)
		if err != nil {
			return nil, err
		}
		if fuel == nil {
			zap.L().Warn("no fuel price available", zap.String("series_id", seriesID))
			continue
		}

		for _, carrier := range carriers {
			table := pickApplicableTable(tables, fuel.Period, carrier, program)
			if table == nil {
				continue
			}
			bracket := selectBracket(table.brackets, fuel.Value)
			if bracket == nil {
				zap.L().Warn("no bracket matches fuel price",
					zap.String("carrier", carrier),
					zap.String("program", program),
					zap.Float64("price", fuel.Value),
				)
				continue
			}

			prior, err := e.store.PriorApplied(ctx, carrier, program, fuel.Period)
			if err != nil {
				return nil, err
			}
			reason := classifyReason(prior, deref(table.effectiveDate), bracket.BracketID)

			row := store.AppliedRow{
				Carrier:            carrier,
				Program:            program,
				WeekEndingDate:     fuel.Period,
				TableEffectiveDate: deref(table.effectiveDate),
				BracketID:          model.String(bracket.BracketID),
				BracketRange:       model.String(bracket.IndexRange),
				AppliedPercent:     derefFloat(bracket.SurchargePercent),
				FuelPrice:          model.Float64(fuel.Value),
				FuelIndex:          model.String(seriesID),
				Reason:             reason,
			}
			if table.runID != "" {
				row.SourceRunID = model.String(table.runID)
			}
			results = append(results, row)
		}
	}

	if _, err := e.store.InsertApplied(ctx, results); err != nil {
		return nil, eris.Wrap(err, "applied: persist rows")
	}
	return results, nil
}

func sortedSeries() []string {
	out := make([]string, 0, len(fuelPrograms))
	for id := range fuelPrograms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// flattenTables turns every table of every latest snapshot into a
// candidate, falling back to the snapshot-level effective date when the
// table has none.
func flattenTables(snapshots []store.SnapshotRow) []tableCandidate {
	var out []tableCandidate
	for _, row := range snapshots {
		snap := row.Snapshot
		if snap == nil {
			continue
		}
		for _, table := range snap.Tables {
			effective := table.EffectiveDate
			if effective == nil {
				effective = snap.EffectiveDate
			}
			out = append(out, tableCandidate{
				carrier:       snap.Carrier,
				program:       table.Program,
				effectiveDate: effective,
				brackets:      table.Brackets,
				runID:         row.RunID,
			})
		}
	}
	return out
}

// pickApplicableTable returns the candidate with the latest effective
// date at or before the week, matching carrier and program
// case-insensitively.
func pickApplicableTable(tables []tableCandidate, week, carrier, program string) *tableCandidate {
	var best *tableCandidate
	for i := range tables {
		t := &tables[i]
		if !strings.EqualFold(t.carrier, carrier) {
			continue
		}
		if t.program == nil || !strings.EqualFold(*t.program, program) {
			continue
		}
		if t.effectiveDate == nil || *t.effectiveDate > week {
			continue
		}
		if best == nil || *t.effectiveDate > *best.effectiveDate {
			best = t
		}
	}
	return best
}

// selectBracket finds the bracket whose index range contains the price.
// A nil min is open-low, a nil max is open-high; the upper bound is
// inclusive within a hair of float tolerance.
func selectBracket(brackets []model.ParsedBracket, price float64) *model.ParsedBracket {
	const eps = 1e-9
	for i := range brackets {
		b := &brackets[i]
		if b.MinIndex != nil && price < *b.MinIndex {
			continue
		}
		if b.MaxIndex != nil && price >= *b.MaxIndex+eps {
			continue
		}
		return b
	}
	return nil
}

// classifyReason compares against the prior week's decision.
func classifyReason(prior *store.AppliedRow, tableEffectiveDate, bracketID string) string {
	if prior == nil {
		return ReasonNew
	}
	tableChanged := prior.TableEffectiveDate != tableEffectiveDate
	bracketChanged := deref(prior.BracketID) != bracketID
	switch {
	case tableChanged && bracketChanged:
		return ReasonBoth
	case tableChanged:
		return ReasonTableChange
	case bracketChanged:
		return ReasonFuelTierChange
	default:
		return ReasonNoChange
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
