package model

// Publishability is the verdict on whether a delta record is trustworthy
// enough to surface externally. IsPublishable is true only when Reasons is
// empty.
type Publishability struct {
	IsPublishable bool     `json:"is_publishable"`
	Reasons       []string `json:"reasons"`
}

// DeltaRecord is one detected change to a single bracket's surcharge value
// between two snapshots of the same source. OldValue and NewValue are never
// equal on an emitted record; exactly one side being null counts as a
// change.
type DeltaRecord struct {
	SchemaVersion         string         `json:"schema_version"`
	Carrier               string         `json:"carrier"`
	SourceID              string         `json:"source_id"`
	CapturedAt            string         `json:"captured_at"`
	PriorCapturedAt       *string        `json:"prior_captured_at"`
	Program               *string        `json:"program"`
	EffectiveDate         *string        `json:"effective_date"`
	BracketID             string         `json:"bracket_id"`
	IndexRange            *string        `json:"index_range"`
	OldValue              *float64       `json:"old_value"`
	NewValue              *float64       `json:"new_value"`
	GroupKey              string         `json:"group_key"`
	Publishability        Publishability `json:"publishability"`
	ParserStructuralError bool           `json:"parser_structural_error"`
}
