package model

// SourceStatus is the terminal state of one source within a run.
type SourceStatus string

const (
	SourceStatusSuccess SourceStatus = "success"
	SourceStatusError   SourceStatus = "error"
)

// ManifestError captures a per-source failure without aborting the run.
type ManifestError struct {
	Message string `json:"message"`
}

// ChildArtifact records the processing of one discovered child URL.
type ChildArtifact struct {
	SourceID          string         `json:"source_id"`
	URL               string         `json:"url"`
	CapturedAt        string         `json:"captured_at"`
	SnapshotDir       string         `json:"snapshot_dir"`
	ParsedPath        *string        `json:"parsed_path"`
	ChangesPath       *string        `json:"changes_path"`
	Status            SourceStatus   `json:"status"`
	Error             *ManifestError `json:"error"`
	EffectiveDateHint *string        `json:"effective_date_hint"`
}

// ManifestSource records the processing of one registry source in a run.
type ManifestSource struct {
	SourceID       string          `json:"source_id"`
	Carrier        string          `json:"carrier"`
	Mode           string          `json:"mode"`
	Status         SourceStatus    `json:"status"`
	CapturedAt     *string         `json:"captured_at"`
	SnapshotDir    *string         `json:"snapshot_dir"`
	ParsedPath     *string         `json:"parsed_path"`
	DiscoveryPath  *string         `json:"discovery_path"`
	ChangesPath    *string         `json:"changes_path"`
	Error          *ManifestError  `json:"error"`
	ChildArtifacts []ChildArtifact `json:"child_artifacts"`
}

// RunManifest is the top-level record of one scrape run.
type RunManifest struct {
	SchemaVersion string           `json:"schema_version"`
	RunID         string           `json:"run_id"`
	OutDir        string           `json:"out_dir"`
	RunDir        string           `json:"run_dir"`
	RegistryPath  string           `json:"registry_path"`
	StartedAt     string           `json:"started_at"`
	EndedAt       string           `json:"ended_at"`
	Sources       []ManifestSource `json:"sources"`
}
