package model

// MismatchCategory is the fixed taxonomy for comparison disagreements.
type MismatchCategory string

const (
	MismatchMissingInLLM   MismatchCategory = "MISSING_IN_LLM"
	MismatchExtraInLLM     MismatchCategory = "EXTRA_IN_LLM"
	MismatchBracketValue   MismatchCategory = "BRACKET_VALUE_MISMATCH"
	MismatchScopeOrDate    MismatchCategory = "SCOPE_OR_DATE_MISMATCH"
)

// MismatchCategories lists every category in report order.
var MismatchCategories = []MismatchCategory{
	MismatchMissingInLLM,
	MismatchExtraInLLM,
	MismatchBracketValue,
	MismatchScopeOrDate,
}

// MismatchScope says whether a mismatch was found on snapshots or deltas.
type MismatchScope string

const (
	ScopeSnapshot MismatchScope = "snapshot"
	ScopeDelta    MismatchScope = "delta"
)

// CompareItem is one categorized disagreement between the baseline run and
// the LLM run.
type CompareItem struct {
	Scope        MismatchScope  `json:"scope"`
	Key          string         `json:"key"`
	Message      string         `json:"message"`
	BaselinePath string         `json:"baseline_path,omitempty"`
	LLMPath      string         `json:"llm_path,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// CompareReport is the single output document of one (baseline, llm)
// comparison run.
type CompareReport struct {
	SchemaVersion string                             `json:"schema_version"`
	BaselineDir   string                             `json:"baseline_dir"`
	LLMDir        string                             `json:"llm_dir"`
	GeneratedAt   string                             `json:"generated_at"`
	Mismatches    map[MismatchCategory][]CompareItem `json:"mismatches"`
}

// Total returns the number of mismatches across all categories.
func (r *CompareReport) Total() int {
	n := 0
	for _, items := range r.Mismatches {
		n += len(items)
	}
	return n
}
