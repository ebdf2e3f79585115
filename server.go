package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the interactive trigger, the statistics query and the article endpoints.
type Server struct {
	workflow       *Workflow
	store          ArticleStore
	gatherer       prometheus.Gatherer
	workflowPerMin int
}

func NewServer(workflow *Workflow, store ArticleStore, gatherer prometheus.Gatherer, workflowPerMin int) *Server {
	if workflowPerMin <= 0 {
		workflowPerMin = 2
	}
	return &Server{workflow: workflow, store: store, gatherer: gatherer, workflowPerMin: workflowPerMin}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		limit := httprate.LimitByIP(s.workflowPerMin, time.Minute)

		r.Get("/trending", s.handleTrending)
		r.Get("/workflow", s.handleStats)
		r.With(limit).Post("/workflow", s.handleRunWorkflow)

		r.Get("/articles", s.handleListArticles)
		r.With(limit).Post("/articles/category", s.handleCategoryArticle)
		r.With(limit).Post("/articles/random", s.handleRandomArticle)
		r.Get("/articles/{slug}", s.handleGetArticle)
		r.Post("/articles/{slug}/like", s.handleLike)
		r.Put("/articles/{slug}/status", s.handleStatus)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("[HTTP] Request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("requestId", chimiddleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("[HTTP] Error encoding response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// runContext detaches a run from the request so a dropped client does not cancel
// work that has already started.
func runContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	cfg := DefaultWorkflowConfig()
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.workflow.Execute(runContext(r), cfg, TriggerInteractive)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.workflow.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	regions := parseRegions(r.URL.Query().Get("regions"))
	limit := queryInt(r, "limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}
	topics := s.workflow.Trending(r.Context(), regions, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"count":     len(topics),
		"topics":    topics,
	})
}

func (s *Server) handleCategoryArticle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Category) == "" {
		writeError(w, http.StatusBadRequest, "Category is required")
		return
	}
	writeJSON(w, http.StatusOK, s.workflow.GenerateForCategory(runContext(r), body.Category, DefaultWorkflowConfig()))
}

func (s *Server) handleRandomArticle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.workflow.GenerateRandom(runContext(r), DefaultWorkflowConfig()))
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ArticleFilter{
		Status: StatusPublished,
		Tag:    q.Get("tag"),
		Search: q.Get("q"),
	}
	if st := ArticleStatus(q.Get("status")); st != "" {
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = st
	}

	page, err := s.store.ListArticles(r.Context(), queryInt(r, "page", 1), queryInt(r, "pageSize", 10), filter)
	if err != nil {
		slog.Error("[HTTP] Error listing articles", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	article, err := s.store.FindBySlug(r.Context(), slug)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load article")
		return
	}
	if article == nil {
		writeError(w, http.StatusNotFound, "Article not found")
		return
	}
	if err := s.store.IncrementViewCount(r.Context(), slug); err != nil {
		slog.Warn("[HTTP] Error incrementing view count", slog.String("slug", slug), slog.Any("error", err))
	} else {
		article.ViewCount++
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := s.store.IncrementLikeCount(r.Context(), slug); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status ArticleStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be one of draft, published, archived")
		return
	}
	if err := s.store.UpdateStatus(r.Context(), chi.URLParam(r, "slug"), body.Status); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrArticleNotFound) {
		writeError(w, http.StatusNotFound, "Article not found")
		return
	}
	slog.Error("[HTTP] Store error", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
