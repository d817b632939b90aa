// Package pipeline orchestrates one scrape run: every fetchable registry
// source is captured, extracted, normalized, diffed against its prior
// snapshot, and recorded in the run manifest. Failures are per-source;
// one broken carrier page never aborts the run.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/capture"
	"github.com/sells-group/fsc-watch/internal/diff"
	"github.com/sells-group/fsc-watch/internal/llm"
	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/normalize"
	"github.com/sells-group/fsc-watch/internal/registry"
	"github.com/sells-group/fsc-watch/internal/runio"
	"github.com/sells-group/fsc-watch/internal/text"
)

// Runner holds the collaborators for one scrape run.
type Runner struct {
	Registry     *registry.Registry
	RegistryPath string
	OutDir       string
	RunID        string
	Fetcher      *capture.Fetcher
	Provider     llm.Provider
	Model        string
}

type artifactResult struct {
	capturedAt  string
	meta        model.CaptureMeta
	snapshotDir string
	parsedPath  string
	changesPath string
	candidate   []byte
}

type artifactOptions struct {
	capturedAt        string
	discoveredFrom    *model.CaptureProvenance
	effectiveDateHint *string
}

func (r *Runner) relative(target string) *string {
	rel, err := filepath.Rel(runio.RunDir(r.OutDir, r.RunID), target)
	if err != nil {
		return model.String(target)
	}
	return model.String(rel)
}

// processArtifact runs capture, text extraction, candidate extraction,
// normalization, and the prior-snapshot diff for one URL of one source.
func (r *Runner) processArtifact(ctx context.Context, source *registry.Source, rawURL string, opts artifactOptions) (*artifactResult, error) {
	capturedAt := opts.capturedAt
	if capturedAt == "" {
		capturedAt = runio.NowUTCISOSeconds()
	}

	captureOut := runio.CaptureDir(r.OutDir, r.RunID, source.Carrier, source.ID, capturedAt)
	snapshotOut := runio.SnapshotDir(r.OutDir, r.RunID, source.Carrier, source.ID, capturedAt)
	llmOut := runio.LLMDir(r.OutDir, r.RunID, source.Carrier, source.ID, capturedAt)

	captured, err := r.Fetcher.Capture(ctx, capture.Params{
		URL:               rawURL,
		ArtifactType:      source.ArtifactType,
		OutDir:            captureOut,
		CapturedAt:        capturedAt,
		DiscoveredFrom:    opts.discoveredFrom,
		EffectiveDateHint: opts.effectiveDateHint,
	})
	if err != nil {
		return nil, err
	}

	var artifactText string
	if source.ArtifactType == model.ArtifactHTML {
		artifactText, err = text.FromHTML(captured.Body)
	} else {
		artifactText, err = text.FromPDF(captured.Body)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: extract text for %s", source.ID)
	}

	// The snapshot directory carries its own copy of the raw artifact and
	// capture meta so a snapshot tree is self-contained.
	if err := runio.CopyFile(captured.ArtifactPath, filepath.Join(snapshotOut, filepath.Base(captured.ArtifactPath))); err != nil {
		return nil, err
	}
	if err := runio.WriteJSON(filepath.Join(snapshotOut, runio.MetaFile), captured.Meta); err != nil {
		return nil, err
	}

	extraction, err := llm.Extract(ctx, llm.ExtractionParams{
		Provider:     r.Provider,
		Model:        r.Model,
		Carrier:      source.Carrier,
		SourceID:     source.ID,
		ArtifactType: string(source.ArtifactType),
		ArtifactText: artifactText,
		OutDir:       llmOut,
	})
	if err != nil {
		return nil, err
	}

	normalized := normalize.Candidate(extraction.Candidate, normalize.Context{
		Carrier:     source.Carrier,
		SourceID:    source.ID,
		CapturedAt:  capturedAt,
		SourceURL:   captured.Meta.FinalURL,
		ContentType: source.ArtifactType.ContentType(),
	})

	parsedPath := filepath.Join(snapshotOut, runio.ParsedFile)
	if err := runio.WriteJSON(parsedPath, normalized.Snapshot); err != nil {
		return nil, err
	}
	if err := runio.WriteJSON(filepath.Join(llmOut, runio.ValidationFile), normalized.Report); err != nil {
		return nil, err
	}

	result := &artifactResult{
		capturedAt:  capturedAt,
		meta:        captured.Meta,
		snapshotDir: snapshotOut,
		parsedPath:  parsedPath,
		candidate:   extraction.Candidate,
	}

	if source.DiffEnabled {
		prior, err := runio.FindPriorSnapshot(r.OutDir, r.RunID, source.Carrier, source.ID, capturedAt)
		if err != nil {
			return nil, err
		}
		var priorSnap *model.Snapshot
		if prior != nil {
			priorSnap = prior.Snapshot
		}
		deltas := diff.Snapshots(normalized.Snapshot, priorSnap)
		changesPath := runio.ChangesPath(r.OutDir, r.RunID, source.Carrier, source.ID, capturedAt)
		if err := runio.WriteJSONLines(changesPath, deltas); err != nil {
			return nil, err
		}
		result.changesPath = changesPath
	}

	return result, nil
}

func manifestError(err error) *model.ManifestError {
	return &model.ManifestError{Message: err.Error()}
}

// processDiscovery harvests child links from a DISCOVERY result and runs
// each child through the artifact pipeline with provenance attached.
func (r *Runner) processDiscovery(ctx context.Context, source *registry.Source, artifact *artifactResult, row *model.ManifestSource) error {
	child := r.Registry.SourceByID(source.ChildSourceID)
	if child == nil {
		return eris.Errorf("pipeline: child source %s not found", source.ChildSourceID)
	}

	discovered := BuildDiscoveredArtifacts(DiscoveryParams{
		Candidate:     artifact.candidate,
		Carrier:       source.Carrier,
		SourceID:      source.ID,
		CapturedAt:    artifact.capturedAt,
		ChildSourceID: child.ID,
		BaseURL:       artifact.meta.FinalURL,
		PDFOnly:       child.ArtifactType == model.ArtifactPDF,
	})

	discoveryPath := runio.DiscoveryPath(r.OutDir, r.RunID, source.Carrier, source.ID, artifact.capturedAt)
	if err := runio.WriteJSON(discoveryPath, discovered); err != nil {
		return err
	}
	row.DiscoveryPath = r.relative(discoveryPath)

	for _, link := range discovered.Artifacts {
		childCapturedAt := runio.NowUTCISOSeconds()
		childRow := model.ChildArtifact{
			SourceID:          child.ID,
			URL:               link.URL,
			CapturedAt:        childCapturedAt,
			Status:            model.SourceStatusSuccess,
			EffectiveDateHint: link.EffectiveDate,
		}

		childArtifact, err := r.processArtifact(ctx, child, link.URL, artifactOptions{
			capturedAt: childCapturedAt,
			discoveredFrom: &model.CaptureProvenance{
				SourceID:    source.ID,
				CapturedAt:  artifact.capturedAt,
				ContentHash: artifact.meta.ContentHashSHA256,
			},
			effectiveDateHint: link.EffectiveDate,
		})
		if err != nil {
			childRow.Status = model.SourceStatusError
			childRow.Error = manifestError(err)
			childRow.SnapshotDir = *r.relative(runio.SnapshotDir(r.OutDir, r.RunID, child.Carrier, child.ID, childCapturedAt))
			zap.L().Warn("child artifact failed",
				zap.String("source_id", child.ID),
				zap.String("url", link.URL),
				zap.Error(err),
			)
		} else {
			childRow.SnapshotDir = *r.relative(childArtifact.snapshotDir)
			childRow.ParsedPath = r.relative(childArtifact.parsedPath)
			if childArtifact.changesPath != "" {
				childRow.ChangesPath = r.relative(childArtifact.changesPath)
			}
		}

		row.ChildArtifacts = append(row.ChildArtifacts, childRow)
	}

	return nil
}

// Run processes every fetchable source and writes the run manifest. The
// manifest is written even when every source fails.
func (r *Runner) Run(ctx context.Context) (*model.RunManifest, error) {
	startedAt := runio.NowUTCISOSeconds()
	fetchable := r.Registry.Fetchable()
	sources := make([]model.ManifestSource, 0, len(fetchable))

	for i := range fetchable {
		source := &fetchable[i]

		row := model.ManifestSource{
			SourceID:       source.ID,
			Carrier:        source.Carrier,
			Mode:           string(source.Mode),
			Status:         model.SourceStatusSuccess,
			ChildArtifacts: []model.ChildArtifact{},
		}

		err := r.processSource(ctx, source, &row)
		if err != nil {
			row.Status = model.SourceStatusError
			row.Error = manifestError(err)
			zap.L().Warn("source failed",
				zap.String("source_id", source.ID),
				zap.Error(err),
			)
		}

		sources = append(sources, row)
	}

	manifest := runio.BuildManifest(runio.ManifestParams{
		RunID:        r.RunID,
		OutDir:       r.OutDir,
		RegistryPath: r.RegistryPath,
		StartedAt:    startedAt,
		EndedAt:      runio.NowUTCISOSeconds(),
		Sources:      sources,
	})
	if err := runio.WriteManifest(manifest); err != nil {
		return nil, err
	}

	zap.L().Info("run complete",
		zap.String("run_id", r.RunID),
		zap.Int("sources", len(sources)),
	)
	return manifest, nil
}

func (r *Runner) processSource(ctx context.Context, source *registry.Source, row *model.ManifestSource) error {
	if source.URL == nil {
		return eris.Errorf("pipeline: source %s is missing a URL", source.ID)
	}

	artifact, err := r.processArtifact(ctx, source, *source.URL, artifactOptions{})
	if err != nil {
		return err
	}

	row.CapturedAt = model.String(artifact.capturedAt)
	row.SnapshotDir = r.relative(artifact.snapshotDir)
	row.ParsedPath = r.relative(artifact.parsedPath)
	if artifact.changesPath != "" {
		row.ChangesPath = r.relative(artifact.changesPath)
	}

	if source.Mode == registry.ModeDiscovery {
		return r.processDiscovery(ctx, source, artifact, row)
	}
	return nil
}
