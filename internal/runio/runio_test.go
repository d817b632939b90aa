package runio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fsc-watch/internal/model"
)

func TestWriteReadJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "changes", DeltaFile)

	records := []model.DeltaRecord{
		{
			SchemaVersion: model.SchemaVersion,
			Carrier:       "ups",
			SourceID:      "ups_current_fuel_surcharge",
			CapturedAt:    "2026-08-24T12:00:00Z",
			BracketID:     "1.50_1.99",
			NewValue:      model.Float64(12.5),
			GroupKey:      "2026-fuel_surcharge-2026-09-01-ups-ground",
			Publishability: model.Publishability{
				IsPublishable: true,
				Reasons:       []string{},
			},
		},
	}

	require.NoError(t, WriteJSONLines(path, records))

	got, err := ReadJSONLines[model.DeltaRecord](path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1.50_1.99", got[0].BracketID)
	require.NotNil(t, got[0].NewValue)
	assert.Equal(t, 12.5, *got[0].NewValue)
	assert.Nil(t, got[0].OldValue)
}

func TestWriteJSONLines_EmptyStillWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DeltaFile)
	require.NoError(t, WriteJSONLines(path, []model.DeltaRecord{}))
	assert.True(t, PathExists(path))

	got, err := ReadJSONLines[model.DeltaRecord](path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func writeSnapshotFile(t *testing.T, outDir, runID, carrier, sourceID, capturedAt string) string {
	t.Helper()
	snap := &model.Snapshot{
		SchemaVersion: model.SchemaVersion,
		Carrier:       carrier,
		SourceID:      sourceID,
		CapturedAt:    capturedAt,
		SourceURL:     "https://example.com",
		ContentType:   "text/html",
		Tables:        []model.ParsedTable{},
	}
	path := filepath.Join(SnapshotDir(outDir, runID, carrier, sourceID, capturedAt), ParsedFile)
	require.NoError(t, WriteJSON(path, snap))
	return path
}

func TestFindPriorSnapshot(t *testing.T) {
	outDir := t.TempDir()

	writeSnapshotFile(t, outDir, "run-1", "ups", "src", "2026-08-10T12:00:00Z")
	wantPath := writeSnapshotFile(t, outDir, "run-2", "ups", "src", "2026-08-17T12:00:00Z")
	// Current run is excluded even though it is newer.
	writeSnapshotFile(t, outDir, "run-3", "ups", "src", "2026-08-24T11:00:00Z")

	prior, err := FindPriorSnapshot(outDir, "run-3", "ups", "src", "2026-08-24T12:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "2026-08-17T12:00:00Z", prior.Snapshot.CapturedAt)
	assert.Equal(t, wantPath, prior.Path)
}

func TestFindPriorSnapshot_NoneFound(t *testing.T) {
	outDir := t.TempDir()

	prior, err := FindPriorSnapshot(outDir, "run-1", "ups", "src", "2026-08-24T12:00:00Z")
	require.NoError(t, err)
	assert.Nil(t, prior)

	// A snapshot at or after the current capture never qualifies.
	writeSnapshotFile(t, outDir, "run-0", "ups", "src", "2026-08-24T12:00:00Z")
	prior, err = FindPriorSnapshot(outDir, "run-1", "ups", "src", "2026-08-24T12:00:00Z")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestManifestRoundTrip(t *testing.T) {
	outDir := t.TempDir()

	m := BuildManifest(ManifestParams{
		RunID:        "run-1",
		OutDir:       outDir,
		RegistryPath: "sources.yaml",
		StartedAt:    "2026-08-24T12:00:00Z",
		EndedAt:      "2026-08-24T12:05:00Z",
	})
	require.NoError(t, WriteManifest(m))

	got, err := ReadManifest(RunDir(outDir, "run-1"))
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, model.SchemaVersion, got.SchemaVersion)
	assert.NotNil(t, got.Sources)
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SHA256Hex(nil))
}
