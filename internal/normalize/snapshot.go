package normalize

import (
	"fmt"
	"strings"

	"github.com/sells-group/fsc-watch/internal/candidate"
	"github.com/sells-group/fsc-watch/internal/model"
)

// Context supplies the capture-side facts for one candidate. These come
// from the capture collaborator and are authoritative for the snapshot's
// carrier and source_id, never derived from the candidate itself.
type Context struct {
	Carrier     string
	SourceID    string
	CapturedAt  string
	SourceURL   string
	ContentType string
}

// ValidationReport aggregates everything observed while normalizing one
// candidate.
type ValidationReport struct {
	SchemaVersion         string                 `json:"schema_version"`
	CandidateValid        bool                   `json:"candidate_valid"`
	Errors                []candidate.FieldError `json:"errors"`
	CandidateWarnings     []model.Warning        `json:"candidate_warnings"`
	NormalizationWarnings []model.Warning        `json:"normalization_warnings"`
	StructuralError       bool                   `json:"structural_error"`
	TableCount            int                    `json:"table_count"`
	EffectiveDate         *string                `json:"effective_date"`
}

// Result pairs the canonical snapshot with its validation report.
type Result struct {
	Snapshot *model.Snapshot
	Report   *ValidationReport
}

// Candidate validates and normalizes one raw candidate payload into a
// canonical snapshot. It never fails: a structurally invalid candidate
// produces an empty-tables snapshot with structural_error set and every
// validation error recorded as a diagnostic message.
func Candidate(raw []byte, ctx Context) *Result {
	parsed, fieldErrs := candidate.Parse(raw)
	if parsed == nil {
		messages := make([]string, 0, len(fieldErrs)+1)
		for _, fe := range fieldErrs {
			messages = append(messages, fmt.Sprintf("SCHEMA_ERROR: %s %s", fe.Path, fe.Message))
		}
		messages = append(messages, model.CodeParserStructuralError+": Candidate schema validation failed.")

		return &Result{
			Snapshot: &model.Snapshot{
				SchemaVersion: model.SchemaVersion,
				Carrier:       ctx.Carrier,
				SourceID:      ctx.SourceID,
				CapturedAt:    ctx.CapturedAt,
				SourceURL:     ctx.SourceURL,
				ContentType:   ctx.ContentType,
				Tables:        []model.ParsedTable{},
				ParserDiagnostics: model.ParserDiagnostics{
					StructuralError: true,
					Messages:        messages,
				},
			},
			Report: &ValidationReport{
				SchemaVersion:         model.SchemaVersion,
				CandidateValid:        false,
				Errors:                fieldErrs,
				CandidateWarnings:     []model.Warning{},
				NormalizationWarnings: []model.Warning{},
				StructuralError:       true,
			},
		}
	}

	var warnings []model.Warning

	// Scope cross-check. The context wins; mismatches are recorded but do
	// not abort processing.
	if !strings.EqualFold(string(parsed.Carrier), ctx.Carrier) {
		warnings = append(warnings, model.Warning{
			Code:     model.CodeScopeAmbiguous,
			Message:  fmt.Sprintf("Candidate carrier %s did not match %s", parsed.Carrier, ctx.Carrier),
			Severity: model.SeverityWarning,
		})
	}
	if parsed.SourceID != ctx.SourceID {
		warnings = append(warnings, model.Warning{
			Code:     model.CodeScopeAmbiguous,
			Message:  fmt.Sprintf("Candidate source_id %s did not match %s", parsed.SourceID, ctx.SourceID),
			Severity: model.SeverityWarning,
		})
	}

	// One top-level date, applied to every table. The candidate schema has
	// no per-program date field.
	date := DateText(parsed.EffectiveDate)
	if date.Warning != nil {
		warnings = append(warnings, *date.Warning)
	}

	tables := make([]model.ParsedTable, 0, len(parsed.Programs))
	for _, program := range parsed.Programs {
		brackets := make([]model.ParsedBracket, 0, len(program.Brackets))
		for _, bracket := range program.Brackets {
			rangeResult := RangeText(bracket.RangeText)
			if rangeResult.Warning != nil {
				warnings = append(warnings, *rangeResult.Warning)
			}

			percentResult := PercentText(bracket.PercentText)
			if percentResult.Warning != nil {
				warnings = append(warnings, *percentResult.Warning)
			}

			brackets = append(brackets, model.ParsedBracket{
				BracketID:        rangeResult.BracketID,
				IndexRange:       bracket.RangeText,
				MinIndex:         rangeResult.IndexLow,
				MaxIndex:         rangeResult.IndexHigh,
				SurchargePercent: percentResult.Value,
				SurchargeText:    bracket.PercentText,
			})
		}

		programName := string(program.Program)
		tables = append(tables, model.ParsedTable{
			Program:       &programName,
			EffectiveDate: date.Value,
			Brackets:      brackets,
		})
	}

	structuralError := parsed.HasStructuralWarning() || len(parsed.Programs) == 0

	if len(parsed.Programs) == 0 {
		warnings = append(warnings, model.Warning{
			Code:     model.CodeTableNotFound,
			Message:  "No programs were extracted from the candidate.",
			Severity: model.SeverityError,
		})
	}

	messages := make([]string, 0, len(parsed.ParseWarnings)+len(warnings)+1)
	for _, w := range parsed.ParseWarnings {
		messages = append(messages, w.Format())
	}
	for _, w := range warnings {
		messages = append(messages, w.Format())
	}
	if structuralError && !parsed.HasStructuralWarning() {
		messages = append(messages, model.CodeParserStructuralError+": Structural parse failure.")
	}

	if warnings == nil {
		warnings = []model.Warning{}
	}

	return &Result{
		Snapshot: &model.Snapshot{
			SchemaVersion: model.SchemaVersion,
			Carrier:       ctx.Carrier,
			SourceID:      ctx.SourceID,
			CapturedAt:    ctx.CapturedAt,
			SourceURL:     ctx.SourceURL,
			ContentType:   ctx.ContentType,
			EffectiveDate: date.Value,
			Tables:        tables,
			ParserDiagnostics: model.ParserDiagnostics{
				StructuralError: structuralError,
				Messages:        messages,
			},
		},
		Report: &ValidationReport{
			SchemaVersion:         model.SchemaVersion,
			CandidateValid:        true,
			Errors:                []candidate.FieldError{},
			CandidateWarnings:     parsed.ParseWarnings,
			NormalizationWarnings: warnings,
			StructuralError:       structuralError,
			TableCount:            len(tables),
			EffectiveDate:         date.Value,
		},
	}
}
