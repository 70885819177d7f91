package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/antosikiss/replicator/internal/batch"
	"github.com/antosikiss/replicator/internal/config"
	"github.com/antosikiss/replicator/internal/pipeline"
	"github.com/antosikiss/replicator/pkg/metrics"
	"github.com/antosikiss/replicator/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const gracefulShutdownTimeout = 5 * time.Second

// Server exposes the HTTP trigger surface: a /generate endpoint that runs
// the pipeline for one record synchronously.
type Server struct {
	cfg      *config.Config
	runner   *batch.Runner
	listener net.Listener
}

func New(cfg *config.Config, runner *batch.Runner, listener net.Listener) *Server {
	return &Server{
		cfg:      cfg,
		runner:   runner,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	router.Get("/health", s.handleHealth)
	router.Get("/generate", s.handleGenerate)
	router.Post("/generate", s.handleGenerate)

	srv := &http.Server{
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	recordID := r.URL.Query().Get("recordId")
	if recordID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "recordId query parameter is required"})
		return
	}

	result, err := s.runner.ProcessRecord(r.Context(), recordID)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": err.Error(), "recordId": recordID})
		return
	}

	status := "ok"
	if result == pipeline.ResultSkipped {
		status = "skipped"
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": status, "recordId": recordID})
}
