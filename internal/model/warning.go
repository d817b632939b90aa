package model

// SchemaVersion is the on-disk schema version for all persisted records.
const SchemaVersion = "1.0"

// Severity classifies a warning.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether the severity is one of the three known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Warning is a structured parse or normalization warning. Warnings are
// accumulated as records and only formatted to text at the report boundary.
type Warning struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Format renders the warning for diagnostic message lists.
func (w Warning) Format() string {
	return w.Code + ": " + w.Message
}

// Warning codes shared across the normalizer and diff paths.
const (
	CodeMissingEffectiveDate  = "MISSING_EFFECTIVE_DATE"
	CodeRangeParseFailed      = "RANGE_PARSE_FAILED"
	CodePercentParseFailed    = "PERCENT_PARSE_FAILED"
	CodeScopeAmbiguous        = "SCOPE_AMBIGUOUS"
	CodeTableNotFound         = "TABLE_NOT_FOUND"
	CodeParserStructuralError = "PARSER_STRUCTURAL_ERROR"
)

// Publishability block reasons on delta records.
const (
	ReasonEffectiveDateUnknown = "EFFECTIVE_DATE_UNKNOWN"
	ReasonProgramUnknown       = "PROGRAM_UNKNOWN"
)

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }
