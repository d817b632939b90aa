// Package compare reconciles two full runs (a trusted baseline vs. an
// LLM-generated run) and classifies every disagreement into a fixed
// taxonomy.
package compare

import (
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/runio"
)

type snapshotEntry struct {
	path string
	data *model.Snapshot
}

type deltaEntry struct {
	path string
	data *model.DeltaRecord
}

// loadSnapshots reads every parsed.json under dir/snapshots, keyed by
// carrier::source_id::captured_at. Unlike normalization this path is
// strict: both sides of a comparison are assumed already-canonical, so a
// file failing validation aborts the whole comparison.
func (e *Engine) loadSnapshots(runDir string) (map[string]snapshotEntry, error) {
	files, err := runio.ListFilesRecursive(filepath.Join(runDir, "snapshots"), func(path string) bool {
		return filepath.Base(path) == runio.ParsedFile
	})
	if err != nil {
		return nil, err
	}

	snapshots := make(map[string]snapshotEntry, len(files))
	for _, path := range files {
		var snap model.Snapshot
		if err := runio.ReadJSON(path, &snap); err != nil {
			return nil, err
		}
		if err := e.validator.Snapshot(&snap); err != nil {
			return nil, eris.Wrapf(err, "compare: snapshot %s", path)
		}
		snapshots[snap.Key()] = snapshotEntry{path: path, data: &snap}
	}
	return snapshots, nil
}

// loadDeltas reads every delta batch under dir/changes, grouped by
// group_key. Validation failures abort, as with snapshots.
func (e *Engine) loadDeltas(runDir string) (map[string][]deltaEntry, error) {
	files, err := runio.ListFilesRecursive(filepath.Join(runDir, "changes"), func(path string) bool {
		return filepath.Base(path) == runio.DeltaFile
	})
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]deltaEntry)
	for _, path := range files {
		records, err := runio.ReadJSONLines[model.DeltaRecord](path)
		if err != nil {
			return nil, err
		}
		for i := range records {
			record := &records[i]
			if err := e.validator.Delta(record); err != nil {
				return nil, eris.Wrapf(err, "compare: delta %s", path)
			}
			groups[record.GroupKey] = append(groups[record.GroupKey], deltaEntry{path: path, data: record})
		}
	}
	return groups, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
