package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/compare"
	"github.com/sells-group/fsc-watch/internal/model"
	"github.com/sells-group/fsc-watch/internal/runio"
)

var servePort int

// listRunManifests reads every run manifest under outDir, newest first.
func listRunManifests(outDir string) ([]*model.RunManifest, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.RunManifest{}, nil
		}
		return nil, eris.Wrapf(err, "serve: read %s", outDir)
	}

	manifests := make([]*model.RunManifest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runDir := filepath.Join(outDir, entry.Name())
		if !runio.PathExists(filepath.Join(runDir, runio.ManifestFile)) {
			continue
		}
		m, err := runio.ReadManifest(runDir)
		if err != nil {
			zap.L().Warn("skipping unreadable manifest", zap.String("run_dir", runDir), zap.Error(err))
			continue
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].StartedAt > manifests[j].StartedAt
	})
	return manifests, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// buildMux assembles the HTTP routes. outDir is where run directories
// live.
func buildMux(outDir string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /runs", func(w http.ResponseWriter, r *http.Request) {
		manifests, err := listRunManifests(outDir)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]any{"runs": manifests})
	})

	mux.HandleFunc("POST /compare", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BaselineDir string `json:"baseline_dir"`
			LLMDir      string `json:"llm_dir"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.BaselineDir == "" || req.LLMDir == "" {
			writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "baseline_dir and llm_dir are required"})
			return
		}

		rep, err := compare.New().Compare(r.Context(), req.BaselineDir, req.LLMDir)
		if err != nil {
			zap.L().Error("compare failed", zap.Error(err))
			writeJSONResponse(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		writeJSONResponse(w, http.StatusOK, rep)
	})

	return mux
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run manifests and comparisons over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildMux(cfg.Scrape.OutDir),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
