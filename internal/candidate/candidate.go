// Package candidate defines the untrusted extraction payload produced by
// the LLM provider and its structural validator. Candidate content is
// never trusted or corrected here; only its shape is checked.
package candidate

import (
	"github.com/sells-group/fsc-watch/internal/model"
)

// Carrier is the candidate's claimed carrier.
type Carrier string

const (
	CarrierUPS   Carrier = "UPS"
	CarrierFedEx Carrier = "FedEx"
)

// Valid reports whether the carrier is one of the two known values.
func (c Carrier) Valid() bool {
	return c == CarrierUPS || c == CarrierFedEx
}

// ProgramKind classifies a surcharge table.
type ProgramKind string

const (
	ProgramGround        ProgramKind = "ground"
	ProgramAir           ProgramKind = "air"
	ProgramInternational ProgramKind = "international"
	ProgramUnknown       ProgramKind = "unknown"
)

// Valid reports whether the program kind is known.
func (p ProgramKind) Valid() bool {
	switch p {
	case ProgramGround, ProgramAir, ProgramInternational, ProgramUnknown:
		return true
	}
	return false
}

// BasisHint is the fuel index a table is keyed on, when the page says so.
type BasisHint string

const (
	BasisDiesel   BasisHint = "diesel"
	BasisJet      BasisHint = "jet"
	BasisGasoline BasisHint = "gasoline"
	BasisUnknown  BasisHint = "unknown"
)

// Valid reports whether the basis hint is known.
func (b BasisHint) Valid() bool {
	switch b {
	case BasisDiesel, BasisJet, BasisGasoline, BasisUnknown:
		return true
	}
	return false
}

// Bracket is one extracted table row, free text plus its evidence snippet.
type Bracket struct {
	RangeText   string `json:"range_text"`
	PercentText string `json:"percent_text"`
	RowEvidence string `json:"row_evidence"`
}

// Program is one extracted surcharge table.
type Program struct {
	Program            ProgramKind `json:"program"`
	TableTitle         *string     `json:"table_title"`
	TableTitleEvidence *string     `json:"table_title_evidence"`
	BasisHint          *BasisHint  `json:"basis_hint"`
	Brackets           []Bracket   `json:"brackets"`
	TableEvidence      *string     `json:"table_evidence"`
}

// Link is one extracted hyperlink, used by discovery sources.
type Link struct {
	Href            string  `json:"href"`
	LinkText        *string `json:"link_text"`
	EffectiveDate   *string `json:"effective_date"`
	EvidenceSnippet string  `json:"evidence_snippet"`
}

// HistoryRow is one row of a 90-day surcharge history table.
type HistoryRow struct {
	WeekOf            string  `json:"week_of"`
	GroundPercentText *string `json:"ground_percent_text"`
	AirPercentText    *string `json:"air_percent_text"`
	RowEvidence       string  `json:"row_evidence"`
}

// History holds the optional 90-day history rows.
type History struct {
	Rows []HistoryRow `json:"rows"`
}

// Extraction is the full candidate payload. Produced once by the
// extraction provider, consumed once by Parse, discarded after
// normalization.
type Extraction struct {
	ArtifactType          model.ArtifactType `json:"artifact_type"`
	Carrier               Carrier            `json:"carrier"`
	SourceID              string             `json:"source_id"`
	EffectiveDate         *string            `json:"effective_date"`
	EffectiveDateEvidence *string            `json:"effective_date_evidence"`
	Programs              []Program          `json:"programs"`
	Links                 []Link             `json:"links"`
	History90d            *History           `json:"history_90d"`
	ParseWarnings         []model.Warning    `json:"parse_warnings"`
}

// HasStructuralWarning reports whether the candidate itself already flagged
// a structural parse failure.
func (e *Extraction) HasStructuralWarning() bool {
	for _, w := range e.ParseWarnings {
		if w.Code == model.CodeParserStructuralError {
			return true
		}
	}
	return false
}
