// Package diff computes per-bracket delta records between two canonical
// snapshots of the same source.
package diff

import (
	"sort"

	"github.com/sells-group/fsc-watch/internal/model"
)

type bracketRecord struct {
	bracketID        string
	indexRange       string
	surchargePercent *float64
}

type tableRecord struct {
	effectiveDate *string
	brackets      map[string]bracketRecord
}

// programKey distinguishes a null program from a named one; a missing or
// null program is a single group keyed by null.
type programKey struct {
	null bool
	name string
}

func keyFor(program *string) programKey {
	if program == nil {
		return programKey{null: true}
	}
	return programKey{name: *program}
}

func buildTableMap(snapshot *model.Snapshot) map[programKey]*tableRecord {
	m := make(map[programKey]*tableRecord)
	for _, table := range snapshot.Tables {
		key := keyFor(table.Program)
		entry, ok := m[key]
		if !ok {
			entry = &tableRecord{
				effectiveDate: table.EffectiveDate,
				brackets:      make(map[string]bracketRecord),
			}
			m[key] = entry
		}
		if entry.effectiveDate == nil {
			entry.effectiveDate = table.EffectiveDate
		}
		for _, bracket := range table.Brackets {
			entry.brackets[bracket.BracketID] = bracketRecord{
				bracketID:        bracket.BracketID,
				indexRange:       bracket.IndexRange,
				surchargePercent: bracket.SurchargePercent,
			}
		}
	}
	return m
}

func groupKeyFor(carrier string, program programKey, effectiveDate *string) string {
	year, dateKey := "unknown", "unknown"
	if effectiveDate != nil {
		dateKey = *effectiveDate
		if len(dateKey) >= 4 {
			year = dateKey[:4]
		}
	}
	programName := "unknown"
	if !program.null {
		programName = program.name
	}
	return year + "-fuel_surcharge-" + dateKey + "-" + carrier + "-" + programName
}

func publishabilityReasons(program programKey, effectiveDate *string, structuralError bool) []string {
	reasons := []string{}
	if effectiveDate == nil {
		reasons = append(reasons, model.ReasonEffectiveDateUnknown)
	}
	if program.null || program.name == "unknown" {
		reasons = append(reasons, model.ReasonProgramUnknown)
	}
	if structuralError {
		reasons = append(reasons, model.CodeParserStructuralError)
	}
	return reasons
}

func valuesEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// Snapshots compares a freshly normalized snapshot against the most recent
// prior snapshot (or nil) and emits one record per bracket whose surcharge
// value changed. A program present only in the prior snapshot emits
// nothing: iteration is keyed off the current snapshot's programs.
// Records are emitted sorted by (program, bracket_id) for stable files,
// but only set membership and per-record content are contractual.
func Snapshots(current *model.Snapshot, prior *model.Snapshot) []model.DeltaRecord {
	currentMap := buildTableMap(current)
	priorMap := map[programKey]*tableRecord{}
	var priorCapturedAt *string
	if prior != nil {
		priorMap = buildTableMap(prior)
		priorCapturedAt = &prior.CapturedAt
	}

	programs := make(map[programKey]struct{})
	for key := range currentMap {
		programs[key] = struct{}{}
	}
	for key := range priorMap {
		programs[key] = struct{}{}
	}

	orderedPrograms := make([]programKey, 0, len(programs))
	for key := range programs {
		orderedPrograms = append(orderedPrograms, key)
	}
	sort.Slice(orderedPrograms, func(i, j int) bool {
		a, b := orderedPrograms[i], orderedPrograms[j]
		if a.null != b.null {
			return a.null
		}
		return a.name < b.name
	})

	records := []model.DeltaRecord{}
	for _, program := range orderedPrograms {
		currentTable, ok := currentMap[program]
		if !ok {
			continue
		}
		priorTable := priorMap[program]

		effectiveDate := currentTable.effectiveDate
		if effectiveDate == nil && priorTable != nil {
			effectiveDate = priorTable.effectiveDate
		}

		bracketIDs := make(map[string]struct{})
		for id := range currentTable.brackets {
			bracketIDs[id] = struct{}{}
		}
		if priorTable != nil {
			for id := range priorTable.brackets {
				bracketIDs[id] = struct{}{}
			}
		}
		orderedBrackets := make([]string, 0, len(bracketIDs))
		for id := range bracketIDs {
			orderedBrackets = append(orderedBrackets, id)
		}
		sort.Strings(orderedBrackets)

		for _, bracketID := range orderedBrackets {
			var oldValue, newValue *float64
			var indexRange *string

			if currentBracket, ok := currentTable.brackets[bracketID]; ok {
				newValue = currentBracket.surchargePercent
				indexRange = &currentBracket.indexRange
			}
			if priorTable != nil {
				if priorBracket, ok := priorTable.brackets[bracketID]; ok {
					oldValue = priorBracket.surchargePercent
					if indexRange == nil {
						indexRange = &priorBracket.indexRange
					}
				}
			}

			if valuesEqual(oldValue, newValue) {
				continue
			}

			reasons := publishabilityReasons(program, effectiveDate, current.ParserDiagnostics.StructuralError)

			var programName *string
			if !program.null {
				name := program.name
				programName = &name
			}

			records = append(records, model.DeltaRecord{
				SchemaVersion:   model.SchemaVersion,
				Carrier:         current.Carrier,
				SourceID:        current.SourceID,
				CapturedAt:      current.CapturedAt,
				PriorCapturedAt: priorCapturedAt,
				Program:         programName,
				EffectiveDate:   effectiveDate,
				BracketID:       bracketID,
				IndexRange:      indexRange,
				OldValue:        oldValue,
				NewValue:        newValue,
				GroupKey:        groupKeyFor(current.Carrier, program, effectiveDate),
				Publishability: model.Publishability{
					IsPublishable: len(reasons) == 0,
					Reasons:       reasons,
				},
				ParserStructuralError: current.ParserDiagnostics.StructuralError,
			})
		}
	}

	return records
}
