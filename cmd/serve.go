package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job management HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/jobs", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				SheetPath string `json:"sheet_path"`
				SheetName string `json:"sheet_name"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.SheetPath == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sheet_path is required"})
				return
			}
			if body.SheetName == "" {
				body.SheetName = cfg.Sheet.DefaultSheetName
			}

			// The job outlives the request; it is bound to the server
			// context so shutdown still cancels it.
			job, err := env.Scheduler.Submit(ctx, body.SheetPath, body.SheetName)
			if err != nil {
				zap.L().Error("job submit failed", zap.Error(err))
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusAccepted, job)
		})

		r.Get("/api/jobs", func(w http.ResponseWriter, req *http.Request) {
			jobs, err := env.Store.ListJobs(req.Context(), store.JobFilter{
				Status: model.JobStatus(req.URL.Query().Get("status")),
			})
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			if jobs == nil {
				jobs = []model.Job{}
			}
			writeJSON(w, http.StatusOK, jobs)
		})

		r.Get("/api/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
			job, err := env.Store.GetJob(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
				return
			}
			writeJSON(w, http.StatusOK, job)
		})

		r.Post("/api/jobs/{id}/cancel", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if err := env.Scheduler.Cancel(req.Context(), id); err != nil {
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "job_id": id})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownServer(srv)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		env.Scheduler.Wait()
		return nil
	},
}

// shutdownServer drains in-flight requests on a fresh context; the
// signal context is already cancelled by the time we get here.
func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
