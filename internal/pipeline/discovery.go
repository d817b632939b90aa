package pipeline

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sells-group/fsc-watch/internal/candidate"
	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/normalize"
)

// DiscoveryParams drives the link harvest from one DISCOVERY capture.
type DiscoveryParams struct {
	Candidate     json.RawMessage
	Carrier       string
	SourceID      string
	CapturedAt    string
	ChildSourceID string
	// BaseURL resolves relative hrefs; usually the capture's final URL.
	BaseURL string
	// PDFOnly drops links that do not end in .pdf, used when the child
	// source expects PDF artifacts.
	PDFOnly bool
}

func resolveHref(href, baseURL string) string {
	if baseURL != "" {
		base, err := url.Parse(baseURL)
		if err == nil {
			resolved, err := base.Parse(href)
			if err == nil && resolved.IsAbs() {
				return resolved.String()
			}
		}
	}
	parsed, err := url.Parse(href)
	if err != nil || !parsed.IsAbs() {
		return ""
	}
	return parsed.String()
}

// resolveCandidateLinks rewrites relative link hrefs in the raw payload
// to absolute URLs before shape validation, which requires them.
func resolveCandidateLinks(raw json.RawMessage, baseURL string) json.RawMessage {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return raw
	}
	links, ok := payload["links"].([]any)
	if !ok {
		return raw
	}
	for _, entry := range links {
		link, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		href, ok := link["href"].(string)
		if !ok {
			continue
		}
		if resolved := resolveHref(href, baseURL); resolved != "" {
			link["href"] = resolved
		}
	}
	rewritten, err := json.Marshal(payload)
	if err != nil {
		return raw
	}
	return rewritten
}

// BuildDiscoveredArtifacts turns the candidate's links into resolved
// child artifacts. Candidates that fail shape validation produce an
// empty artifact list with a structural error, never a hard failure.
func BuildDiscoveredArtifacts(params DiscoveryParams) *model.DiscoveredArtifacts {
	out := &model.DiscoveredArtifacts{
		SchemaVersion: model.SchemaVersion,
		Carrier:       params.Carrier,
		SourceID:      params.SourceID,
		CapturedAt:    params.CapturedAt,
		Artifacts:     []model.DiscoveredArtifact{},
	}

	parsed, fieldErrs := candidate.Parse(resolveCandidateLinks(params.Candidate, params.BaseURL))
	if parsed == nil {
		messages := []string{model.CodeParserStructuralError + ": Candidate schema validation failed."}
		for _, fe := range fieldErrs {
			messages = append(messages, fmt.Sprintf("%s: %s", fe.Path, fe.Message))
		}
		out.ParserDiagnostics = model.ParserDiagnostics{
			StructuralError: true,
			Messages:        messages,
		}
		return out
	}

	for _, link := range parsed.Links {
		resolved := resolveHref(link.Href, params.BaseURL)
		if resolved == "" {
			continue
		}
		if params.PDFOnly && !strings.HasSuffix(strings.ToLower(resolved), ".pdf") {
			continue
		}
		date := normalize.DateText(link.EffectiveDate)
		out.Artifacts = append(out.Artifacts, model.DiscoveredArtifact{
			URL:            resolved,
			EffectiveDate:  date.Value,
			ContextExcerpt: model.String(link.EvidenceSnippet),
			ChildSourceID:  params.ChildSourceID,
		})
	}

	messages := make([]string, 0, len(parsed.ParseWarnings)+1)
	for _, w := range parsed.ParseWarnings {
		messages = append(messages, strings.TrimSpace(fmt.Sprintf("%s: %s", w.Code, w.Message)))
	}
	if len(out.Artifacts) == 0 {
		messages = append(messages, "LINKS_NOT_FOUND: No discoverable artifacts were found.")
	}

	out.ParserDiagnostics = model.ParserDiagnostics{
		StructuralError: parsed.HasStructuralWarning() || len(out.Artifacts) == 0,
		Messages:        messages,
	}
	return out
}
