package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/fsc-watch/internal/model"
)

// Unicode dash variants (figure dash, en dash, em dash, minus sign) folded
// to ASCII hyphen before pattern matching.
var unicodeDashes = strings.NewReplacer(
	"‒", "-", "–", "-", "—", "-", "−", "-",
)

var (
	// Ordering matters: bounded ranges are tried before open-ended forms
	// so that "1.50 - 1.99+" style text cannot false-match as open-high.
	boundedRangePat = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:-|to)\s*(\d+(?:\.\d+)?)`)
	openHighPat     = regexp.MustCompile(`(\d+(?:\.\d+)?)(?:\s*\+|\s*and\s+above)`)
	openHighGtePat  = regexp.MustCompile(`>=\s*(\d+(?:\.\d+)?)`)
	openLowPat      = regexp.MustCompile(`(?:<|under|less\s+than)\s*(\d+(?:\.\d+)?)`)
	whitespacePat   = regexp.MustCompile(`\s+`)
)

// RangeResult is the outcome of normalizing one bracket range text.
// BracketID is deterministic: identical range text always yields an
// identical id, which is what joins brackets across snapshots.
type RangeResult struct {
	IndexLow  *float64
	IndexHigh *float64
	BracketID string
	Warning   *model.Warning
}

func formatIndex(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func cleanRangeText(text string) string {
	cleaned := unicodeDashes.Replace(text)
	cleaned = strings.NewReplacer("$", "", ",", "").Replace(cleaned)
	cleaned = strings.ToLower(cleaned)
	cleaned = whitespacePat.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func fallbackBracketID(text string) string {
	cleaned := cleanRangeText(text)
	cleaned = strings.ReplaceAll(cleaned, " ", "_")
	if cleaned == "" {
		return "unknown_range"
	}
	return cleaned
}

func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// RangeText normalizes a free-text fuel index range. Either bound may be
// null, meaning unbounded on that side.
func RangeText(text string) RangeResult {
	cleaned := cleanRangeText(text)

	if m := boundedRangePat.FindStringSubmatch(cleaned); m != nil {
		low, high := mustFloat(m[1]), mustFloat(m[2])
		return RangeResult{
			IndexLow:  model.Float64(low),
			IndexHigh: model.Float64(high),
			BracketID: formatIndex(low) + "_" + formatIndex(high),
		}
	}

	if m := openHighPat.FindStringSubmatch(cleaned); m != nil {
		low := mustFloat(m[1])
		return RangeResult{
			IndexLow:  model.Float64(low),
			BracketID: formatIndex(low) + "_plus",
		}
	}

	if m := openHighGtePat.FindStringSubmatch(cleaned); m != nil {
		low := mustFloat(m[1])
		return RangeResult{
			IndexLow:  model.Float64(low),
			BracketID: formatIndex(low) + "_plus",
		}
	}

	if m := openLowPat.FindStringSubmatch(cleaned); m != nil {
		high := mustFloat(m[1])
		return RangeResult{
			IndexHigh: model.Float64(high),
			BracketID: "lt_" + formatIndex(high),
		}
	}

	return RangeResult{
		BracketID: fallbackBracketID(text),
		Warning: &model.Warning{
			Code:     model.CodeRangeParseFailed,
			Message:  fmt.Sprintf("Could not parse range: %s", text),
			Severity: model.SeverityWarning,
		},
	}
}
