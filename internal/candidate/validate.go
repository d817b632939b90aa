package candidate

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sells-group/fsc-watch/internal/model"
)

// FieldError is one structural validation failure, addressed by field path.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Parse decodes and structurally validates a raw candidate payload.
// On success the returned Extraction has optional arrays default-filled
// (programs/links/warnings empty, history left nil) and is otherwise
// unchanged in shape. On failure it returns the field errors and no
// candidate; partial normalization never happens.
func Parse(raw []byte) (*Extraction, []FieldError) {
	var e Extraction
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, []FieldError{decodeError(err)}
	}

	errs := e.validate()
	if len(errs) > 0 {
		return nil, errs
	}

	if e.Programs == nil {
		e.Programs = []Program{}
	}
	if e.Links == nil {
		e.Links = []Link{}
	}
	if e.ParseWarnings == nil {
		e.ParseWarnings = []model.Warning{}
	}
	return &e, nil
}

func decodeError(err error) FieldError {
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		path := typeErr.Field
		if path == "" {
			path = "(root)"
		}
		return FieldError{Path: path, Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)}
	}
	return FieldError{Path: "(root)", Message: err.Error()}
}

type checker struct {
	errs []FieldError
}

func (c *checker) addf(path, format string, args ...any) {
	c.errs = append(c.errs, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) text(path, value string, min, max int) {
	if len(value) < min {
		c.addf(path, "must be at least %d characters", min)
	} else if max > 0 && len(value) > max {
		c.addf(path, "must be at most %d characters", max)
	}
}

func (c *checker) optText(path string, value *string, min, max int) {
	if value != nil {
		c.text(path, *value, min, max)
	}
}

func (e *Extraction) validate() []FieldError {
	c := &checker{}

	if !e.ArtifactType.Valid() {
		c.addf("artifact_type", "unknown artifact type %q", e.ArtifactType)
	}
	if !e.Carrier.Valid() {
		c.addf("carrier", "unknown carrier %q", e.Carrier)
	}
	c.text("source_id", e.SourceID, 1, 0)
	c.optText("effective_date", e.EffectiveDate, 4, 32)
	c.optText("effective_date_evidence", e.EffectiveDateEvidence, 1, 300)

	for i, p := range e.Programs {
		base := fmt.Sprintf("programs.%d", i)
		if !p.Program.Valid() {
			c.addf(base+".program", "unknown program %q", p.Program)
		}
		c.optText(base+".table_title", p.TableTitle, 1, 200)
		c.optText(base+".table_title_evidence", p.TableTitleEvidence, 1, 300)
		if p.BasisHint != nil && !p.BasisHint.Valid() {
			c.addf(base+".basis_hint", "unknown basis hint %q", *p.BasisHint)
		}
		c.optText(base+".table_evidence", p.TableEvidence, 1, 300)
		for j, b := range p.Brackets {
			row := fmt.Sprintf("%s.brackets.%d", base, j)
			c.text(row+".range_text", b.RangeText, 1, 0)
			c.text(row+".percent_text", b.PercentText, 1, 0)
			c.text(row+".row_evidence", b.RowEvidence, 1, 300)
		}
	}

	for i, l := range e.Links {
		base := fmt.Sprintf("links.%d", i)
		if !urlShaped(l.Href) {
			c.addf(base+".href", "not a valid URL: %q", l.Href)
		}
		c.optText(base+".link_text", l.LinkText, 1, 200)
		c.optText(base+".effective_date", l.EffectiveDate, 4, 32)
		c.text(base+".evidence_snippet", l.EvidenceSnippet, 1, 300)
	}

	if e.History90d != nil {
		for i, r := range e.History90d.Rows {
			base := fmt.Sprintf("history_90d.rows.%d", i)
			c.text(base+".week_of", r.WeekOf, 4, 32)
			c.optText(base+".ground_percent_text", r.GroundPercentText, 1, 32)
			c.optText(base+".air_percent_text", r.AirPercentText, 1, 32)
			c.text(base+".row_evidence", r.RowEvidence, 1, 300)
		}
	}

	for i, w := range e.ParseWarnings {
		base := fmt.Sprintf("parse_warnings.%d", i)
		c.text(base+".code", w.Code, 1, 0)
		c.text(base+".message", w.Message, 1, 0)
		if !w.Severity.Valid() {
			c.addf(base+".severity", "unknown severity %q", w.Severity)
		}
	}

	return c.errs
}

func urlShaped(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
