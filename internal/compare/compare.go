package compare

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/runio"
)

// tolerance is the absolute tolerance for numeric value comparison.
const tolerance = 0.01

// Engine compares two run directories. The strict validator it carries is
// scoped to the engine instance, not shared process-wide; construct one
// Engine per comparison run.
type Engine struct {
	validator *model.Validator
}

// New builds a comparison engine with a fresh validator cache.
func New() *Engine {
	return &Engine{validator: model.NewValidator()}
}

type mismatches map[model.MismatchCategory][]model.CompareItem

func newMismatches() mismatches {
	m := make(mismatches, len(model.MismatchCategories))
	for _, category := range model.MismatchCategories {
		m[category] = []model.CompareItem{}
	}
	return m
}

func (m mismatches) add(category model.MismatchCategory, item model.CompareItem) {
	m[category] = append(m[category], item)
}

// numbersEqual treats (null, null) as equal, (null, non-null) as unequal,
// and otherwise compares within the absolute tolerance.
func numbersEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return math.Abs(*a-*b) <= tolerance
}

func stringsEqualPtr(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func derefAny[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Compare loads both run trees and reconciles them. Read-only; mismatch
// list ordering is deterministic but only set membership is contractual.
func (e *Engine) Compare(ctx context.Context, baselineDir, llmDir string) (*model.CompareReport, error) {
	var (
		baselineSnapshots, llmSnapshots map[string]snapshotEntry
		baselineDeltas, llmDeltas       map[string][]deltaEntry
	)

	// The four trees are independent; load them concurrently.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) { baselineSnapshots, err = e.loadSnapshots(baselineDir); return })
	g.Go(func() (err error) { llmSnapshots, err = e.loadSnapshots(llmDir); return })
	g.Go(func() (err error) { baselineDeltas, err = e.loadDeltas(baselineDir); return })
	g.Go(func() (err error) { llmDeltas, err = e.loadDeltas(llmDir); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := newMismatches()

	for _, key := range sortedKeys(baselineSnapshots) {
		if _, ok := llmSnapshots[key]; !ok {
			report.add(model.MismatchMissingInLLM, model.CompareItem{
				Scope:        model.ScopeSnapshot,
				Key:          key,
				Message:      "snapshot missing in llm",
				BaselinePath: baselineSnapshots[key].path,
			})
		}
	}
	for _, key := range sortedKeys(llmSnapshots) {
		if _, ok := baselineSnapshots[key]; !ok {
			report.add(model.MismatchExtraInLLM, model.CompareItem{
				Scope:   model.ScopeSnapshot,
				Key:     key,
				Message: "extra snapshot in llm",
				LLMPath: llmSnapshots[key].path,
			})
		}
	}
	for _, key := range sortedKeys(baselineSnapshots) {
		llm, ok := llmSnapshots[key]
		if !ok {
			continue
		}
		compareSnapshotPair(baselineSnapshots[key], llm, report)
	}

	compareDeltaGroups(baselineDeltas, llmDeltas, report)

	return &model.CompareReport{
		SchemaVersion: model.SchemaVersion,
		BaselineDir:   baselineDir,
		LLMDir:        llmDir,
		GeneratedAt:   runio.NowUTCISOSeconds(),
		Mismatches:    report,
	}, nil
}

// programBracketMap flattens a snapshot into program → bracket_id →
// bracket. A null program is keyed by the literal "null".
func programBracketMap(snapshot *model.Snapshot) map[string]map[string]model.ParsedBracket {
	m := make(map[string]map[string]model.ParsedBracket)
	for _, table := range snapshot.Tables {
		programKey := "null"
		if table.Program != nil {
			programKey = *table.Program
		}
		brackets, ok := m[programKey]
		if !ok {
			brackets = make(map[string]model.ParsedBracket)
			m[programKey] = brackets
		}
		for _, bracket := range table.Brackets {
			brackets[bracket.BracketID] = bracket
		}
	}
	return m
}

func compareSnapshotPair(baseline, llm snapshotEntry, report mismatches) {
	key := baseline.data.Key()

	if !stringsEqualPtr(baseline.data.EffectiveDate, llm.data.EffectiveDate) {
		report.add(model.MismatchScopeOrDate, model.CompareItem{
			Scope:        model.ScopeSnapshot,
			Key:          key,
			Message:      "effective_date mismatch",
			BaselinePath: baseline.path,
			LLMPath:      llm.path,
			Details: map[string]any{
				"baseline": derefAny(baseline.data.EffectiveDate),
				"llm":      derefAny(llm.data.EffectiveDate),
			},
		})
	}

	baselinePrograms := programBracketMap(baseline.data)
	llmPrograms := programBracketMap(llm.data)

	for _, program := range sortedKeys(baselinePrograms) {
		if _, ok := llmPrograms[program]; !ok {
			report.add(model.MismatchScopeOrDate, model.CompareItem{
				Scope:        model.ScopeSnapshot,
				Key:          key,
				Message:      fmt.Sprintf("program missing in llm: %s", program),
				BaselinePath: baseline.path,
				LLMPath:      llm.path,
			})
		}
	}
	for _, program := range sortedKeys(llmPrograms) {
		if _, ok := baselinePrograms[program]; !ok {
			report.add(model.MismatchScopeOrDate, model.CompareItem{
				Scope:        model.ScopeSnapshot,
				Key:          key,
				Message:      fmt.Sprintf("extra program in llm: %s", program),
				BaselinePath: baseline.path,
				LLMPath:      llm.path,
			})
		}
	}

	for _, program := range sortedKeys(baselinePrograms) {
		llmBrackets, ok := llmPrograms[program]
		if !ok {
			continue
		}
		baselineBrackets := baselinePrograms[program]

		for _, bracketID := range sortedKeys(baselineBrackets) {
			if _, ok := llmBrackets[bracketID]; !ok {
				report.add(model.MismatchScopeOrDate, model.CompareItem{
					Scope:        model.ScopeSnapshot,
					Key:          key,
					Message:      fmt.Sprintf("bracket missing in llm: %s %s", program, bracketID),
					BaselinePath: baseline.path,
					LLMPath:      llm.path,
				})
			}
		}
		for _, bracketID := range sortedKeys(llmBrackets) {
			if _, ok := baselineBrackets[bracketID]; !ok {
				report.add(model.MismatchScopeOrDate, model.CompareItem{
					Scope:        model.ScopeSnapshot,
					Key:          key,
					Message:      fmt.Sprintf("extra bracket in llm: %s %s", program, bracketID),
					BaselinePath: baseline.path,
					LLMPath:      llm.path,
				})
			}
		}

		for _, bracketID := range sortedKeys(baselineBrackets) {
			llmBracket, ok := llmBrackets[bracketID]
			if !ok {
				continue
			}
			baselineBracket := baselineBrackets[bracketID]
			if !numbersEqual(baselineBracket.SurchargePercent, llmBracket.SurchargePercent) {
				report.add(model.MismatchBracketValue, model.CompareItem{
					Scope:        model.ScopeSnapshot,
					Key:          key,
					Message:      fmt.Sprintf("surcharge_percent mismatch for %s %s", program, bracketID),
					BaselinePath: baseline.path,
					LLMPath:      llm.path,
					Details: map[string]any{
						"baseline": derefAny(baselineBracket.SurchargePercent),
						"llm":      derefAny(llmBracket.SurchargePercent),
					},
				})
			}
		}
	}
}

func compareDeltaGroups(baselineGroups, llmGroups map[string][]deltaEntry, report mismatches) {
	for _, key := range sortedKeys(baselineGroups) {
		if _, ok := llmGroups[key]; !ok {
			report.add(model.MismatchMissingInLLM, model.CompareItem{
				Scope:   model.ScopeDelta,
				Key:     key,
				Message: "delta group missing in llm",
			})
		}
	}
	for _, key := range sortedKeys(llmGroups) {
		if _, ok := baselineGroups[key]; !ok {
			report.add(model.MismatchExtraInLLM, model.CompareItem{
				Scope:   model.ScopeDelta,
				Key:     key,
				Message: "extra delta group in llm",
			})
		}
	}

	for _, key := range sortedKeys(baselineGroups) {
		llmGroup, ok := llmGroups[key]
		if !ok {
			continue
		}
		baselineGroup := baselineGroups[key]

		if len(baselineGroup) != len(llmGroup) {
			report.add(model.MismatchScopeOrDate, model.CompareItem{
				Scope:   model.ScopeDelta,
				Key:     key,
				Message: "delta record count mismatch",
				Details: map[string]any{
					"baseline": len(baselineGroup),
					"llm":      len(llmGroup),
				},
			})
		}

		baselineByBracket := make(map[string]*model.DeltaRecord, len(baselineGroup))
		for _, entry := range baselineGroup {
			baselineByBracket[entry.data.BracketID] = entry.data
		}
		llmByBracket := make(map[string]*model.DeltaRecord, len(llmGroup))
		for _, entry := range llmGroup {
			llmByBracket[entry.data.BracketID] = entry.data
		}

		for _, bracketID := range sortedKeys(baselineByBracket) {
			if _, ok := llmByBracket[bracketID]; !ok {
				report.add(model.MismatchScopeOrDate, model.CompareItem{
					Scope:   model.ScopeDelta,
					Key:     key,
					Message: fmt.Sprintf("delta bracket missing in llm: %s", bracketID),
				})
			}
		}
		for _, bracketID := range sortedKeys(llmByBracket) {
			if _, ok := baselineByBracket[bracketID]; !ok {
				report.add(model.MismatchScopeOrDate, model.CompareItem{
					Scope:   model.ScopeDelta,
					Key:     key,
					Message: fmt.Sprintf("extra delta bracket in llm: %s", bracketID),
				})
			}
		}

		for _, bracketID := range sortedKeys(baselineByBracket) {
			llmRecord, ok := llmByBracket[bracketID]
			if !ok {
				continue
			}
			baselineRecord := baselineByBracket[bracketID]

			if !numbersEqual(baselineRecord.OldValue, llmRecord.OldValue) {
				report.add(model.MismatchBracketValue, model.CompareItem{
					Scope:   model.ScopeDelta,
					Key:     key,
					Message: fmt.Sprintf("old_value mismatch for %s", bracketID),
					Details: map[string]any{
						"baseline": derefAny(baselineRecord.OldValue),
						"llm":      derefAny(llmRecord.OldValue),
					},
				})
			}
			if !numbersEqual(baselineRecord.NewValue, llmRecord.NewValue) {
				report.add(model.MismatchBracketValue, model.CompareItem{
					Scope:   model.ScopeDelta,
					Key:     key,
					Message: fmt.Sprintf("new_value mismatch for %s", bracketID),
					Details: map[string]any{
						"baseline": derefAny(baselineRecord.NewValue),
						"llm":      derefAny(llmRecord.NewValue),
					},
				})
			}
		}
	}
}
