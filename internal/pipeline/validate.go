package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/diff"
	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/normalize"
	"github.com/sells-group/fsc-watch/internal/registry"
	"github.com/sells-group/fsc-watch/internal/runio"
)

// RevalidateParams identifies the run to re-normalize.
type RevalidateParams struct {
	RunDir string
	// RegistryPath overrides the path recorded in the manifest when set.
	RegistryPath string
}

// Revalidate re-runs normalization and diffing over every stored
// extraction response in a run directory, without re-capturing or
// re-extracting anything. Returns the number of responses processed.
func Revalidate(params RevalidateParams) (int, error) {
	manifest, err := runio.ReadManifest(params.RunDir)
	if err != nil {
		return 0, err
	}

	registryPath := params.RegistryPath
	if registryPath == "" {
		registryPath = manifest.RegistryPath
	}
	reg, err := registry.Load(registryPath)
	if err != nil {
		return 0, err
	}

	llmRoot := filepath.Join(params.RunDir, "llm")
	if !runio.PathExists(llmRoot) {
		return 0, eris.Errorf("pipeline: no llm directory in %s", params.RunDir)
	}

	responses, err := runio.ListFilesRecursive(llmRoot, func(path string) bool {
		return filepath.Base(path) == runio.ResponseFile
	})
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, responsePath := range responses {
		rel, err := filepath.Rel(params.RunDir, responsePath)
		if err != nil {
			continue
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) < 5 || parts[0] != "llm" {
			continue
		}
		carrier, sourceID, capturedAt := parts[1], parts[2], parts[3]

		source := reg.SourceByID(sourceID)
		if source == nil {
			return processed, eris.Errorf("pipeline: source %s not in registry", sourceID)
		}

		candidate, err := os.ReadFile(responsePath)
		if err != nil {
			return processed, eris.Wrapf(err, "pipeline: read %s", responsePath)
		}

		snapshotOut := filepath.Join(params.RunDir, "snapshots", carrier, sourceID, capturedAt)
		var meta model.CaptureMeta
		if err := runio.ReadJSON(filepath.Join(snapshotOut, runio.MetaFile), &meta); err != nil {
			return processed, err
		}

		sourceURL := meta.FinalURL
		if sourceURL == "" && source.URL != nil {
			sourceURL = *source.URL
		}
		if sourceURL == "" {
			return processed, eris.Errorf("pipeline: no source URL for %s at %s", sourceID, capturedAt)
		}

		normalized := normalize.Candidate(candidate, normalize.Context{
			Carrier:     carrier,
			SourceID:    sourceID,
			CapturedAt:  capturedAt,
			SourceURL:   sourceURL,
			ContentType: source.ArtifactType.ContentType(),
		})

		if err := runio.WriteJSON(filepath.Join(snapshotOut, runio.ParsedFile), normalized.Snapshot); err != nil {
			return processed, err
		}
		if err := runio.WriteJSON(filepath.Join(filepath.Dir(responsePath), runio.ValidationFile), normalized.Report); err != nil {
			return processed, err
		}

		if source.DiffEnabled {
			prior, err := runio.FindPriorSnapshot(manifest.OutDir, manifest.RunID, carrier, sourceID, capturedAt)
			if err != nil {
				return processed, err
			}
			var priorSnap *model.Snapshot
			if prior != nil {
				priorSnap = prior.Snapshot
			}
			deltas := diff.Snapshots(normalized.Snapshot, priorSnap)
			if err := runio.WriteJSONLines(runio.ChangesPath(manifest.OutDir, manifest.RunID, carrier, sourceID, capturedAt), deltas); err != nil {
				return processed, err
			}
		}

		processed++
	}

	zap.L().Info("revalidated run",
		zap.String("run_id", manifest.RunID),
		zap.Int("responses", processed),
	)
	return processed, nil
}
