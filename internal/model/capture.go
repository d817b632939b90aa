package model

// ArtifactType distinguishes captured HTML pages from PDF documents.
type ArtifactType string

const (
	ArtifactHTML ArtifactType = "html"
	ArtifactPDF  ArtifactType = "pdf"
)

// Valid reports whether the artifact type is known.
func (a ArtifactType) Valid() bool {
	return a == ArtifactHTML || a == ArtifactPDF
}

// ContentType returns the MIME type stored on snapshots for this artifact.
func (a ArtifactType) ContentType() string {
	if a == ArtifactPDF {
		return "application/pdf"
	}
	return "text/html"
}

// CaptureProvenance links a child capture back to the discovery capture
// that produced its URL.
type CaptureProvenance struct {
	SourceID    string `json:"source_id"`
	CapturedAt  string `json:"captured_at"`
	ContentHash string `json:"content_hash"`
}

// CaptureMeta records how one artifact was fetched.
type CaptureMeta struct {
	CapturedAt        string             `json:"captured_at"`
	FinalURL          string             `json:"final_url"`
	StatusCode        *int               `json:"status_code"`
	ContentHashSHA256 string             `json:"content_hash_sha256"`
	UserAgent         string             `json:"user_agent,omitempty"`
	TotalMs           int64              `json:"total_ms"`
	DiscoveredFrom    *CaptureProvenance `json:"discovered_from,omitempty"`
	EffectiveDateHint *string            `json:"effective_date_hint,omitempty"`
}

// DiscoveredArtifact is one follow-up URL found on a discovery page.
type DiscoveredArtifact struct {
	URL            string  `json:"url"`
	EffectiveDate  *string `json:"effective_date"`
	ContextExcerpt *string `json:"context_excerpt"`
	ChildSourceID  string  `json:"child_source_id"`
}

// DiscoveredArtifacts is the discovery output for one capture of a
// DISCOVERY-mode source.
type DiscoveredArtifacts struct {
	SchemaVersion     string               `json:"schema_version"`
	Carrier           string               `json:"carrier"`
	SourceID          string               `json:"source_id"`
	CapturedAt        string               `json:"captured_at"`
	Artifacts         []DiscoveredArtifact `json:"artifacts"`
	ParserDiagnostics ParserDiagnostics    `json:"parser_diagnostics"`
}
