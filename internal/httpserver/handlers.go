package httpserver

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/usecase"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

// handleCron runs one workflow tick. force=true bypasses the weekly gate.
func (s *HTTPServer) handleCron(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	ctx := r.Context()
	if s.tickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.tickTimeout)
		defer cancel()
	}

	result, err := s.workflow.Tick(ctx, force)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "workflow tick failed")
		return
	}
	respondJSON(w, http.StatusOK, CronResponse{
		Success:   true,
		Action:    string(result.Action),
		RunID:     result.RunID,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

// handleAction consumes an emailed link and redirects to a result page.
func (s *HTTPServer) handleAction(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := usecase.ActionRequest{
		Token:  query.Get("token"),
		Action: query.Get("action"),
		Topic:  query.Get("topic"),
	}
	req.HasTopic = query.Has("topic")

	result, err := s.actions.Handle(r.Context(), req)
	if err != nil {
		target := "/workflow/error?reason=" + url.QueryEscape(domain.ReasonOf(err))
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	switch result.Action {
	case "select":
		http.Redirect(w, r, "/workflow/topic-selected?topic="+url.QueryEscape(result.SelectedTitle), http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/workflow/approved", http.StatusSeeOther)
	}
}

func (s *HTTPServer) handleDraftPreview(w http.ResponseWriter, r *http.Request) {
	draft, err := s.workflow.DraftByToken(r.Context(), r.PathValue("token"))
	if errors.Is(err, domain.ErrNotFound) {
		s.render(w, http.StatusNotFound, "not_found.html", nil)
		return
	}
	if err != nil {
		s.logger.Error("load draft preview", "error", err)
		s.render(w, http.StatusInternalServerError, "error.html", map[string]any{"Reason": domain.ReasonInternal})
		return
	}

	s.render(w, http.StatusOK, "preview.html", map[string]any{
		"Publication": s.publication,
		"Draft":       draft,
		// Generated content is normalized before it is stored.
		"Content": template.HTML(draft.Content),
	})
}

func (s *HTTPServer) handleTopicSelected(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = "your topic"
	}
	s.render(w, http.StatusOK, "topic_selected.html", map[string]any{"Topic": topic})
}

func (s *HTTPServer) handleApproved(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "approved.html", nil)
}

func (s *HTTPServer) handleError(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "unknown error"
	}
	s.render(w, http.StatusOK, "error.html", map[string]any{"Reason": reason})
}

func (s *HTTPServer) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render page", "page", name, "error", err)
	}
}
