package normalize

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/sells-group/fsc-watch/internal/model"
)

var percentStripPat = regexp.MustCompile(`[%\s,]`)

// PercentResult is the outcome of normalizing one surcharge percent text.
type PercentResult struct {
	Value   *float64
	Warning *model.Warning
}

// PercentText normalizes a free-text percentage like "12.50%".
func PercentText(text string) PercentResult {
	cleaned := percentStripPat.ReplaceAllString(text, "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return PercentResult{Warning: &model.Warning{
			Code:     model.CodePercentParseFailed,
			Message:  fmt.Sprintf("Could not parse percent: %s", text),
			Severity: model.SeverityWarning,
		}}
	}
	return PercentResult{Value: model.Float64(value)}
}
