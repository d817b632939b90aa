package runio

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sells-group/fsc-watch/internal/model"
)

// PriorSnapshot is the most recent snapshot found for a source, with the
// file it was loaded from.
type PriorSnapshot struct {
	Snapshot *model.Snapshot
	Path     string
}

// FindPriorSnapshot scans every run under outDir except currentRunID for
// the latest snapshot of (carrier, sourceID) captured strictly earlier
// than currentCapturedAt. Returns nil when none exists. Snapshots whose
// captured_at does not parse are skipped; tie-breaking among equal
// timestamps is not defined here.
func FindPriorSnapshot(outDir, currentRunID, carrier, sourceID, currentCapturedAt string) (*PriorSnapshot, error) {
	currentTime, err := time.Parse(time.RFC3339, currentCapturedAt)
	if err != nil {
		return nil, nil
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, nil
	}

	var best *PriorSnapshot
	var bestTime time.Time

	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == currentRunID {
			continue
		}
		snapshotRoot := filepath.Join(outDir, entry.Name(), "snapshots", carrier, sourceID)
		captures, err := os.ReadDir(snapshotRoot)
		if err != nil {
			continue
		}

		for _, capture := range captures {
			parsedPath := filepath.Join(snapshotRoot, capture.Name(), ParsedFile)
			if !PathExists(parsedPath) {
				continue
			}

			var snap model.Snapshot
			if err := ReadJSON(parsedPath, &snap); err != nil {
				return nil, err
			}

			parsedTime, err := time.Parse(time.RFC3339, snap.CapturedAt)
			if err != nil || !parsedTime.Before(currentTime) {
				continue
			}
			if best == nil || parsedTime.After(bestTime) {
				bestTime = parsedTime
				best = &PriorSnapshot{Snapshot: &snap, Path: parsedPath}
			}
		}
	}

	return best, nil
}
