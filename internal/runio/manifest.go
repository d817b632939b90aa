package runio

import (
	"path/filepath"

	"github.com/sells-group/fsc-watch/internal/model"
)

// ManifestParams collects everything needed to build a run manifest.
type ManifestParams struct {
	RunID        string
	OutDir       string
	RegistryPath string
	StartedAt    string
	EndedAt      string
	Sources      []model.ManifestSource
}

// BuildManifest assembles the manifest record for one run.
func BuildManifest(p ManifestParams) *model.RunManifest {
	sources := p.Sources
	if sources == nil {
		sources = []model.ManifestSource{}
	}
	return &model.RunManifest{
		SchemaVersion: model.SchemaVersion,
		RunID:         p.RunID,
		OutDir:        p.OutDir,
		RunDir:        RunDir(p.OutDir, p.RunID),
		RegistryPath:  p.RegistryPath,
		StartedAt:     p.StartedAt,
		EndedAt:       p.EndedAt,
		Sources:       sources,
	}
}

// WriteManifest persists the manifest into its run directory.
func WriteManifest(m *model.RunManifest) error {
	return WriteJSON(ManifestPath(m.OutDir, m.RunID), m)
}

// ReadManifest loads the manifest of runDir.
func ReadManifest(runDir string) (*model.RunManifest, error) {
	var m model.RunManifest
	if err := ReadJSON(filepath.Join(runDir, ManifestFile), &m); err != nil {
		return nil, err
	}
	return &m, nil
}
