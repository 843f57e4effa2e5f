// Package server exposes the distillation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/distill/internal/pipeline"
	"github.com/thebtf/distill/internal/recap"
	"github.com/thebtf/distill/internal/report"
	"github.com/thebtf/distill/internal/server/sse"
)

// maxBodyBytes caps request bodies ahead of the pipeline's own input
// limit so oversized uploads fail fast.
const maxBodyBytes = 16 << 20

// Service serves the distillation API.
type Service struct {
	pipe     *pipeline.Pipeline
	renderer *report.Renderer
	router   chi.Router
	events   *sse.Broadcaster
	version  string
}

// New creates a Service around an existing pipeline.
func New(pipe *pipeline.Pipeline, version string) *Service {
	s := &Service{
		pipe:     pipe,
		renderer: report.NewRenderer(),
		router:   chi.NewRouter(),
		events:   sse.NewBroadcaster(),
		version:  version,
	}
	s.setupRoutes()
	return s
}

// Router returns the service's HTTP handler.
func (s *Service) Router() http.Handler {
	return s.router
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/api/v1/distill", s.handleDistill)
	s.router.Post("/api/v1/recap", s.handleRecap)
	s.router.Get("/api/v1/events", s.events.Handle)
}

// requestLogger logs each request with zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("Request handled")
	})
}

// DistillRequest is the API request body.
type DistillRequest struct {
	Text      string `json:"text"`
	Strategy  string `json:"strategy,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
	Format    string `json:"format,omitempty"` // "json" (default) or "markdown"
}

// DistillMarkdownResponse wraps the Markdown rendering.
type DistillMarkdownResponse struct {
	RunID    string `json:"run_id"`
	Markdown string `json:"markdown"`
	Tokens   int    `json:"tokens,omitempty"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Service) handleDistill(w http.ResponseWriter, r *http.Request) {
	var req DistillRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	res, err := s.pipe.Distill(r.Context(), req.Text, pipeline.Options{
		BatchSize: req.BatchSize,
		Strategy:  req.Strategy,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, pipeline.ErrInputTooLarge), errors.Is(err, pipeline.ErrTooManyEvents):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, pipeline.ErrTimeout):
			status = http.StatusGatewayTimeout
		}
		log.Warn().Err(err).Int("status", status).Msg("Distill request failed")
		writeError(w, status, err.Error())
		return
	}

	s.events.Broadcast(sse.RunEvent{
		Type:       "run_completed",
		RunID:      res.RunID,
		Strategy:   res.Strategy,
		EventCount: res.EventCount,
		Clusters:   len(res.Clusters),
		Duration:   res.Duration,
	})

	if req.Format == "markdown" {
		md := s.renderer.Markdown(res)
		tokens, _ := report.TokenCost(md)
		writeJSON(w, http.StatusOK, DistillMarkdownResponse{
			RunID:    res.RunID.String(),
			Markdown: md,
			Tokens:   tokens,
		})
		return
	}

	out, err := s.renderer.JSON(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode result")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// RecapRequest is the transcript recap request body.
type RecapRequest struct {
	Text string `json:"text"`
}

func (s *Service) handleRecap(w http.ResponseWriter, r *http.Request) {
	var req RecapRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	rec := recap.Summarize(req.Text)
	writeJSON(w, http.StatusOK, map[string]any{
		"recap":    rec,
		"markdown": rec.Markdown(),
	})
}

// ListenAndServe runs the HTTP server until ctx is cancelled.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
