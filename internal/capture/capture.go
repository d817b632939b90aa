// Package capture fetches raw carrier artifacts over HTTP and writes
// them next to a meta.json describing how the fetch went.
package capture

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/runio"
)

const maxArtifactBytes = 32 << 20

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// RatePerSecond throttles all requests through one shared limiter.
	RatePerSecond float64
	Burst         int
}

// Fetcher downloads artifacts politely.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewFetcher creates a Fetcher with the given options, filling defaults
// for anything unset.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "fsc-watch/1.0"
	}
	if opts.RatePerSecond == 0 {
		opts.RatePerSecond = 1
	}
	if opts.Burst == 0 {
		opts.Burst = 2
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		userAgent: opts.UserAgent,
	}
}

// Params describes one capture event.
type Params struct {
	URL               string
	ArtifactType      model.ArtifactType
	OutDir            string
	CapturedAt        string
	DiscoveredFrom    *model.CaptureProvenance
	EffectiveDateHint *string
}

// Result is the outcome of one capture.
type Result struct {
	Meta         model.CaptureMeta
	ArtifactPath string
	MetaPath     string
	Body         []byte
}

// Capture fetches params.URL and writes raw.html or raw.pdf plus
// meta.json under params.OutDir. The body is returned so callers can
// feed text extraction without re-reading the file.
func (f *Fetcher) Capture(ctx context.Context, params Params) (*Result, error) {
	if !params.ArtifactType.Valid() {
		return nil, eris.Errorf("capture: unknown artifact type %q", params.ArtifactType)
	}
	capturedAt := params.CapturedAt
	if capturedAt == "" {
		capturedAt = runio.NowUTCISOSeconds()
	}

	start := time.Now()
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "capture: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "capture: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "capture: fetch %s", params.URL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("capture: fetch failed (%d) for %s", resp.StatusCode, params.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "capture: read body from %s", params.URL)
	}

	status := resp.StatusCode
	meta := model.CaptureMeta{
		CapturedAt:        capturedAt,
		FinalURL:          resp.Request.URL.String(),
		StatusCode:        &status,
		ContentHashSHA256: runio.SHA256Hex(body),
		UserAgent:         f.userAgent,
		TotalMs:           time.Since(start).Milliseconds(),
		DiscoveredFrom:    params.DiscoveredFrom,
		EffectiveDateHint: params.EffectiveDateHint,
	}

	artifactPath := filepath.Join(params.OutDir, "raw."+string(params.ArtifactType))
	metaPath := filepath.Join(params.OutDir, runio.MetaFile)

	if err := os.MkdirAll(params.OutDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "capture: mkdir %s", params.OutDir)
	}
	if err := os.WriteFile(artifactPath, body, 0o644); err != nil {
		return nil, eris.Wrapf(err, "capture: write %s", artifactPath)
	}
	if err := runio.WriteJSON(metaPath, meta); err != nil {
		return nil, err
	}

	zap.L().Info("captured artifact",
		zap.String("url", params.URL),
		zap.String("final_url", meta.FinalURL),
		zap.String("artifact_type", string(params.ArtifactType)),
		zap.Int("bytes", len(body)),
		zap.Int64("total_ms", meta.TotalMs),
	)

	return &Result{
		Meta:         meta,
		ArtifactPath: artifactPath,
		MetaPath:     metaPath,
		Body:         body,
	}, nil
}
