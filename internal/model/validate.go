package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Validator performs strict shape validation of persisted canonical
// records. The comparison loader path is strict, unlike normalization:
// both sides of a comparison are assumed already-canonical, so a failure
// here is an invariant violation and propagates as a hard error.
//
// Compiled patterns are cached on the instance. Construct one Validator
// per comparison run rather than sharing process-wide state.
type Validator struct {
	instantPat *regexp.Regexp
	datePat    *regexp.Regexp
}

// NewValidator builds a Validator with its pattern cache populated.
func NewValidator() *Validator {
	return &Validator{
		instantPat: regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		datePat:    regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	}
}

type fieldErrors []string

func (e *fieldErrors) addf(format string, args ...any) {
	*e = append(*e, fmt.Sprintf(format, args...))
}

func (e fieldErrors) err(kind string) error {
	if len(e) == 0 {
		return nil
	}
	return eris.Errorf("model: invalid %s: %s", kind, strings.Join(e, "; "))
}

// Snapshot checks a stored snapshot against the canonical shape.
func (v *Validator) Snapshot(s *Snapshot) error {
	var errs fieldErrors
	if s.SchemaVersion != SchemaVersion {
		errs.addf("schema_version: got %q, want %q", s.SchemaVersion, SchemaVersion)
	}
	if s.Carrier == "" {
		errs.addf("carrier: empty")
	}
	if s.SourceID == "" {
		errs.addf("source_id: empty")
	}
	if !v.instantPat.MatchString(s.CapturedAt) {
		errs.addf("captured_at: %q is not an ISO instant", s.CapturedAt)
	}
	if s.SourceURL == "" {
		errs.addf("source_url: empty")
	}
	if s.ContentType == "" {
		errs.addf("content_type: empty")
	}
	if s.EffectiveDate != nil && !v.datePat.MatchString(*s.EffectiveDate) {
		errs.addf("effective_date: %q is not YYYY-MM-DD", *s.EffectiveDate)
	}
	for i, table := range s.Tables {
		if table.EffectiveDate != nil && !v.datePat.MatchString(*table.EffectiveDate) {
			errs.addf("tables[%d].effective_date: %q is not YYYY-MM-DD", i, *table.EffectiveDate)
		}
		for j, bracket := range table.Brackets {
			if bracket.BracketID == "" {
				errs.addf("tables[%d].brackets[%d].bracket_id: empty", i, j)
			}
			if bracket.IndexRange == "" {
				errs.addf("tables[%d].brackets[%d].index_range: empty", i, j)
			}
		}
	}
	return errs.err("snapshot")
}

// Delta checks a stored delta record against the canonical shape.
func (v *Validator) Delta(d *DeltaRecord) error {
	var errs fieldErrors
	if d.SchemaVersion != SchemaVersion {
		errs.addf("schema_version: got %q, want %q", d.SchemaVersion, SchemaVersion)
	}
	if d.Carrier == "" {
		errs.addf("carrier: empty")
	}
	if d.SourceID == "" {
		errs.addf("source_id: empty")
	}
	if !v.instantPat.MatchString(d.CapturedAt) {
		errs.addf("captured_at: %q is not an ISO instant", d.CapturedAt)
	}
	if d.PriorCapturedAt != nil && !v.instantPat.MatchString(*d.PriorCapturedAt) {
		errs.addf("prior_captured_at: %q is not an ISO instant", *d.PriorCapturedAt)
	}
	if d.EffectiveDate != nil && !v.datePat.MatchString(*d.EffectiveDate) {
		errs.addf("effective_date: %q is not YYYY-MM-DD", *d.EffectiveDate)
	}
	if d.BracketID == "" {
		errs.addf("bracket_id: empty")
	}
	if d.GroupKey == "" {
		errs.addf("group_key: empty")
	}
	if !d.Publishability.IsPublishable && len(d.Publishability.Reasons) == 0 {
		errs.addf("publishability: not publishable but no reasons")
	}
	if d.Publishability.IsPublishable && len(d.Publishability.Reasons) > 0 {
		errs.addf("publishability: publishable with reasons")
	}
	return errs.err("delta record")
}
