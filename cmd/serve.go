package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geonorge/dokanalyse/internal/orchestrator"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svcs, err := initServices(cfg, nil)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(svcs),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(svcs *services) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Correlation-ID"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/dokanalyse", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "dokanalyse",
			"version": "0.1.0",
			"title":   map[string]string{"no": "DOK-analyse"},
			"description": map[string]string{
				"no": "Tjeneste som utfører en standardisert DOK-arealanalyse " +
					"for enhetlig DOK-analyse på tvers av kommuner og systemleverandører.",
			},
			"keywords": []string{"dokanalyse", "DOK"},
		})
	})

	r.Get("/api/datasets", func(w http.ResponseWriter, req *http.Request) {
		type datasetInfo struct {
			Name      string   `json:"name"`
			DatasetID string   `json:"datasetId,omitempty"`
			Title     string   `json:"title"`
			Themes    []string `json:"themes"`
		}
		list := make([]datasetInfo, 0, len(svcs.datasets))
		for _, ds := range svcs.datasets {
			list = append(list, datasetInfo{
				Name:      ds.Name,
				DatasetID: ds.DatasetID,
				Title:     ds.Title,
				Themes:    ds.Themes,
			})
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.Post("/api/dokanalyse", func(w http.ResponseWriter, req *http.Request) {
		var request orchestrator.Request
		if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(request.InputGeometry) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "inputGeometry is required"})
			return
		}

		correlationID := req.Header.Get("X-Correlation-ID")
		resp, err := svcs.orchestrator.Run(req.Context(), &request, correlationID)
		if err != nil {
			zap.L().Error("analysis request failed", zap.Error(err))
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "analysis failed: invalid input geometry"})
			return
		}

		writeJSON(w, http.StatusOK, resp)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encoding failed", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
