// Package normalize converts free-text candidate fields into canonical
// typed values. Normalizers are stateless and never fail hard: a text that
// matches no pattern yields a null value plus a structured warning, so the
// caller can still produce a best-effort canonical record.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/fsc-watch/internal/model"
)

var monthNumbers = map[string]string{
	"january": "01", "february": "02", "march": "03", "april": "04",
	"may": "05", "june": "06", "july": "07", "august": "08",
	"september": "09", "october": "10", "november": "11", "december": "12",
	"jan": "01", "feb": "02", "mar": "03", "apr": "04",
	"jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "sept": "09", "oct": "10", "nov": "11", "dec": "12",
}

var (
	monthDatePat = regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`)
	numericDatePat = regexp.MustCompile(`\b(\d{1,2})[/\-](\d{1,2})[/\-](\d{4})\b`)
	ordinalPat     = regexp.MustCompile(`(?i)(st|nd|rd|th)$`)
	yearPat        = regexp.MustCompile(`^\d{4}$`)
)

// DateResult is the outcome of normalizing one free-text date.
type DateResult struct {
	Value   *string
	Warning *model.Warning
}

// DateText normalizes a free-text effective date to ISO YYYY-MM-DD.
// Month-name forms are tried before slash/dash numeric forms. No timezone
// or locale inference is performed.
func DateText(text *string) DateResult {
	if text == nil || *text == "" {
		return DateResult{Warning: &model.Warning{
			Code:     model.CodeMissingEffectiveDate,
			Message:  "Effective date was missing.",
			Severity: model.SeverityWarning,
		}}
	}

	if match := monthDatePat.FindString(*text); match != "" {
		cleaned := strings.NewReplacer(",", "", ".", "").Replace(match)
		parts := strings.Fields(cleaned)
		if len(parts) >= 3 {
			month := monthNumbers[strings.ToLower(parts[0])]
			day := ordinalPat.ReplaceAllString(parts[1], "")
			if len(day) == 1 {
				day = "0" + day
			}
			year := parts[2]
			if month != "" && yearPat.MatchString(year) {
				return DateResult{Value: model.String(year + "-" + month + "-" + day)}
			}
		}
	}

	if m := numericDatePat.FindStringSubmatch(*text); m != nil {
		month, day := m[1], m[2]
		if len(month) == 1 {
			month = "0" + month
		}
		if len(day) == 1 {
			day = "0" + day
		}
		return DateResult{Value: model.String(m[3] + "-" + month + "-" + day)}
	}

	return DateResult{Warning: &model.Warning{
		Code:     model.CodeMissingEffectiveDate,
		Message:  fmt.Sprintf("Could not normalize effective date: %s", *text),
		Severity: model.SeverityWarning,
	}}
}
