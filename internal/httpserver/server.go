// Package httpserver exposes the workflow over HTTP: the cron trigger, the
// emailed action links, the draft preview and the result pages.
package httpserver

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/usecase"
)

//go:embed pages/*.html
var pageFiles embed.FS

const shutdownTimeout = 10 * time.Second

// Workflow is the part of the state machine the HTTP surface drives.
type Workflow interface {
	Tick(ctx context.Context, force bool) (usecase.TickResult, error)
	DraftByToken(ctx context.Context, tok string) (domain.DraftPost, error)
}

// ActionHandler applies emailed decisions.
type ActionHandler interface {
	Handle(ctx context.Context, req usecase.ActionRequest) (usecase.ActionResult, error)
}

// Deps wires the server. Metrics may be nil.
type Deps struct {
	Workflow    Workflow
	Actions     ActionHandler
	Metrics     http.Handler
	CronSecret  string
	Publication string
	Version     string
	TickTimeout time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

// HTTPServer serves the public and operator endpoints.
type HTTPServer struct {
	mux         *http.ServeMux
	workflow    Workflow
	actions     ActionHandler
	metrics     http.Handler
	cronSecret  string
	publication string
	version     string
	tickTimeout time.Duration
	now         func() time.Time
	pages       *template.Template
	logger      *slog.Logger
}

// New builds the server and registers its routes.
func New(deps Deps) (*HTTPServer, error) {
	pages, err := template.ParseFS(pageFiles, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse pages: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	s := &HTTPServer{
		mux:         http.NewServeMux(),
		workflow:    deps.Workflow,
		actions:     deps.Actions,
		metrics:     deps.Metrics,
		cronSecret:  deps.CronSecret,
		publication: deps.Publication,
		version:     deps.Version,
		tickTimeout: deps.TickTimeout,
		now:         now,
		pages:       pages,
		logger:      logger.With("component", "http"),
	}
	s.registerRoutes()
	return s, nil
}

func (s *HTTPServer) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/cron/workflow", s.cronAuth(s.handleCron))
	s.mux.HandleFunc("POST /api/cron/workflow", s.cronAuth(s.handleCron))

	s.mux.HandleFunc("GET /api/workflow/action", s.handleAction)
	s.mux.HandleFunc("GET /draft-preview/{token}", s.handleDraftPreview)

	s.mux.HandleFunc("GET /workflow/topic-selected", s.handleTopicSelected)
	s.mux.HandleFunc("GET /workflow/approved", s.handleApproved)
	s.mux.HandleFunc("GET /workflow/error", s.handleError)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// Handler returns the routed handler with request logging.
func (s *HTTPServer) Handler() http.Handler {
	return logging(s.logger, s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
