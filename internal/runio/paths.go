// Package runio owns the on-disk layout of scrape runs and the JSON/JSONL
// io used by every command that reads or writes run artifacts.
package runio

import "path/filepath"

// Well-known file names within a run directory.
const (
	ManifestFile   = "run_manifest.json"
	ParsedFile     = "parsed.json"
	MetaFile       = "meta.json"
	DeltaFile      = "fsc_delta_records.jsonl"
	DiscoveryFile  = "discovered_artifacts.json"
	RequestFile    = "extraction_request.json"
	ResponseFile   = "extraction_response.json"
	ValidationFile = "validation_report.json"
)

// RunDir returns the root directory of one run.
func RunDir(outDir, runID string) string {
	return filepath.Join(outDir, runID)
}

// ManifestPath returns the run manifest location.
func ManifestPath(outDir, runID string) string {
	return filepath.Join(RunDir(outDir, runID), ManifestFile)
}

// CaptureDir returns the raw-artifact directory for one capture event.
func CaptureDir(outDir, runID, carrier, sourceID, capturedAt string) string {
	return filepath.Join(RunDir(outDir, runID), "capture", carrier, sourceID, capturedAt)
}

// SnapshotDir returns the canonical-snapshot directory for one capture event.
func SnapshotDir(outDir, runID, carrier, sourceID, capturedAt string) string {
	return filepath.Join(RunDir(outDir, runID), "snapshots", carrier, sourceID, capturedAt)
}

// LLMDir returns the extraction audit directory for one capture event.
func LLMDir(outDir, runID, carrier, sourceID, capturedAt string) string {
	return filepath.Join(RunDir(outDir, runID), "llm", carrier, sourceID, capturedAt)
}

// DiscoveryPath returns the discovered-artifacts file for one capture event.
func DiscoveryPath(outDir, runID, carrier, sourceID, capturedAt string) string {
	return filepath.Join(RunDir(outDir, runID), "discovery", carrier, sourceID, capturedAt, DiscoveryFile)
}

// ChangesPath returns the delta-records file for one capture event.
func ChangesPath(outDir, runID, carrier, sourceID, capturedAt string) string {
	return filepath.Join(RunDir(outDir, runID), "changes", carrier, sourceID, capturedAt, DeltaFile)
}
