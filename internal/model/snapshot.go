package model

import "fmt"

// ParserDiagnostics carries structural-error state and formatted messages
// for one snapshot.
type ParserDiagnostics struct {
	StructuralError bool     `json:"structural_error"`
	Messages        []string `json:"messages"`
}

// ParsedBracket is one canonical surcharge tier. BracketID is a pure
// function of the range text, so identical text always joins across
// snapshots captured at different times.
type ParsedBracket struct {
	BracketID        string   `json:"bracket_id"`
	IndexRange       string   `json:"index_range"`
	MinIndex         *float64 `json:"min_index"`
	MaxIndex         *float64 `json:"max_index"`
	SurchargePercent *float64 `json:"surcharge_percent"`
	SurchargeText    string   `json:"surcharge_text"`
}

// ParsedTable is one canonical table, one per distinct program value seen
// in the candidate.
type ParsedTable struct {
	Program       *string         `json:"program"`
	EffectiveDate *string         `json:"effective_date"`
	Brackets      []ParsedBracket `json:"brackets"`
}

// Snapshot is the canonical, immutable representation of one capture
// event, identified by (carrier, source_id, captured_at).
type Snapshot struct {
	SchemaVersion     string            `json:"schema_version"`
	Carrier           string            `json:"carrier"`
	SourceID          string            `json:"source_id"`
	CapturedAt        string            `json:"captured_at"`
	SourceURL         string            `json:"source_url"`
	ContentType       string            `json:"content_type"`
	EffectiveDate     *string           `json:"effective_date"`
	Tables            []ParsedTable     `json:"tables"`
	ParserDiagnostics ParserDiagnostics `json:"parser_diagnostics"`
}

// Key returns the unique snapshot identity used by the comparison engine.
func (s *Snapshot) Key() string {
	return fmt.Sprintf("%s::%s::%s", s.Carrier, s.SourceID, s.CapturedAt)
}
