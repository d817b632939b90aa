package store

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/runio"
)

// PersistRun loads a run directory into the store: the run header, every
// source and child artifact row, each parsed snapshot with its tables and
// brackets, and the delta batches. Inserts are idempotent, so persisting
// the same run twice is safe.
func PersistRun(ctx context.Context, st Store, runDir string) error {
	manifest, err := runio.ReadManifest(runDir)
	if err != nil {
		return err
	}

	if err := st.InsertRun(ctx, manifest); err != nil {
		return err
	}

	snapshots := 0
	deltas := 0
	for _, src := range manifest.Sources {
		if err := st.InsertRunSource(ctx, manifest.RunID, src); err != nil {
			return err
		}

		if src.ParsedPath != nil && src.CapturedAt != nil {
			if err := persistSnapshot(ctx, st, manifest.RunID, filepath.Join(runDir, *src.ParsedPath)); err != nil {
				return err
			}
			snapshots++
		}
		if src.ChangesPath != nil {
			n, err := persistDeltas(ctx, st, manifest.RunID, filepath.Join(runDir, *src.ChangesPath))
			if err != nil {
				return err
			}
			deltas += n
		}

		for _, child := range src.ChildArtifacts {
			if err := st.InsertChildArtifact(ctx, manifest.RunID, src.SourceID, child); err != nil {
				return err
			}
			if child.ParsedPath != nil {
				if err := persistSnapshot(ctx, st, manifest.RunID, filepath.Join(runDir, *child.ParsedPath)); err != nil {
					return err
				}
				snapshots++
			}
			if child.ChangesPath != nil {
				n, err := persistDeltas(ctx, st, manifest.RunID, filepath.Join(runDir, *child.ChangesPath))
				if err != nil {
					return err
				}
				deltas += n
			}
		}
	}

	zap.L().Info("persisted run",
		zap.String("run_id", manifest.RunID),
		zap.Int("snapshots", snapshots),
		zap.Int("deltas", deltas),
	)
	return nil
}

func persistSnapshot(ctx context.Context, st Store, runID, parsedPath string) error {
	var snap model.Snapshot
	if err := runio.ReadJSON(parsedPath, &snap); err != nil {
		return err
	}
	return st.InsertSnapshot(ctx, runID, &snap)
}

func persistDeltas(ctx context.Context, st Store, runID, changesPath string) (int, error) {
	records, err := runio.ReadJSONLines[model.DeltaRecord](changesPath)
	if err != nil {
		return 0, err
	}
	return st.InsertDeltas(ctx, runID, records)
}
