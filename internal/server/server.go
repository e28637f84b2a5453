// Package server exposes the content platform over HTTP: the bootstrap and
// batch APIs the hydration agents call, server-rendered hub and detail pages,
// and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kinetic/pkg/kinetic"
)

// Option mutates server configuration.
type Option func(*Server)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(server *Server) {
		if logger != nil {
			server.logger = logger
		}
	}
}

// Server is the HTTP surface over the warm cache and the content store.
type Server struct {
	logger   *slog.Logger
	cache    kinetic.ContentCache
	fetcher  kinetic.ContentFetcher
	renderer kinetic.DetailRenderer

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	router   chi.Router
	hubTmpl  *template.Template
}

// New builds the server and its router.
func New(cache kinetic.ContentCache, fetcher kinetic.ContentFetcher, renderer kinetic.DetailRenderer, options ...Option) (*Server, error) {
	hubTmpl, err := template.New("hub").Parse(hubTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse hub template: %w", err)
	}

	server := &Server{
		logger:   slog.Default(),
		cache:    cache,
		fetcher:  fetcher,
		renderer: renderer,
		registry: prometheus.NewRegistry(),
		hubTmpl:  hubTmpl,
	}
	for _, option := range options {
		option(server)
	}

	server.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kinetic_http_requests_total",
		Help: "HTTP requests by route pattern, method, and status.",
	}, []string{"pattern", "method", "status"})
	server.registry.MustRegister(
		server.requests,
		newCacheCollector(cache),
		collectors.NewGoCollector(),
	)

	server.router = server.buildRouter()

	return server, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.logRequests)
	router.Use(requestMetrics(s.requests))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealth)
	router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	router.Route("/api", func(api chi.Router) {
		api.Get("/bootstrap", s.handleBootstrap)
		api.Get("/content", s.handleContentBatch)
		api.Get("/tags", s.handleTagBatch)
		api.Get("/creators", s.handleCreatorBatch)
	})

	router.Get("/hub/{hub}", s.handleHubPage)
	router.Get("/{type}/{slug}", s.handleDetailPage)

	return router
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	payload, err := s.fetcher.FetchBootstrap(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleContentBatch(w http.ResponseWriter, r *http.Request) {
	ids := splitParam(r.URL.Query().Get("ids"))
	slugs := splitParam(r.URL.Query().Get("slugs"))
	if len(ids) == 0 && len(slugs) == 0 {
		s.writeError(w, r, http.StatusBadRequest, errors.New("ids or slugs required"))
		return
	}

	documents, err := s.fetchContentBatch(r.Context(), ids, slugs)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"documents": documents})
}

func (s *Server) fetchContentBatch(ctx context.Context, ids, slugs []string) ([]kinetic.ContentDocument, error) {
	var documents []kinetic.ContentDocument
	if len(ids) > 0 {
		byID, err := s.fetcher.FetchDocumentsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		documents = append(documents, byID...)
	}
	if len(slugs) > 0 {
		bySlug, err := s.fetcher.FetchDocumentsBySlugs(ctx, slugs)
		if err != nil {
			return nil, err
		}
		documents = append(documents, bySlug...)
	}

	return documents, nil
}

func (s *Server) handleTagBatch(w http.ResponseWriter, r *http.Request) {
	slugs := splitParam(r.URL.Query().Get("slugs"))
	if len(slugs) == 0 {
		s.writeError(w, r, http.StatusBadRequest, errors.New("slugs required"))
		return
	}

	tags, err := s.fetcher.FetchTagsBySlugs(r.Context(), slugs)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) handleCreatorBatch(w http.ResponseWriter, r *http.Request) {
	ids := splitParam(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		s.writeError(w, r, http.StatusBadRequest, errors.New("ids required"))
		return
	}

	creators, err := s.fetcher.FetchCreatorsByIDs(r.Context(), ids)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"creators": creators})
}

// hubView is the template model for one listing page.
type hubView struct {
	Hub   kinetic.HubKey
	Type  kinetic.ContentType
	Items []kinetic.ContentDocument
}

func (s *Server) handleHubPage(w http.ResponseWriter, r *http.Request) {
	hub := kinetic.HubKey(chi.URLParam(r, "hub"))
	if !hub.Valid() {
		http.NotFound(w, r)
		return
	}

	snapshot, found := s.cache.GetIndex(hub)
	if !found {
		http.NotFound(w, r)
		return
	}

	contentType, _ := kinetic.ContentTypeForHub(hub)
	view := hubView{Hub: hub, Type: contentType}
	for _, slug := range snapshot.ItemSlugs {
		if document, cached := s.cache.GetBySlug(slug); cached {
			view.Items = append(view.Items, document)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.hubTmpl.Execute(w, view); err != nil {
		s.logger.ErrorContext(r.Context(), "hub page render failed", "hub", hub, "error", err)
	}
}

// handleDetailPage serves the real (non-overlay) detail page through the same
// renderer the overlay uses. A cold cache falls back to the store so direct
// entry on a detail URL still works.
func (s *Server) handleDetailPage(w http.ResponseWriter, r *http.Request) {
	contentType := kinetic.ContentType(chi.URLParam(r, "type"))
	slug := chi.URLParam(r, "slug")
	if !contentType.Valid() {
		http.NotFound(w, r)
		return
	}

	document, found := s.cache.GetBySlug(slug)
	if !found {
		fetched, err := s.fetcher.FetchDocumentsBySlugs(r.Context(), []string{slug})
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
		if len(fetched) == 0 {
			http.NotFound(w, r)
			return
		}
		document = fetched[0]
	}
	if document.Type != contentType {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderDetail(r.Context(), w, document, kinetic.ScopeNone); err != nil {
		s.logger.ErrorContext(r.Context(), "detail page render failed", "slug", slug, "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.ErrorContext(r.Context(), "request failed",
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}

	return values
}

const hubTemplate = `<!DOCTYPE html>
<html>
<head><title>{{.Hub}}</title></head>
<body>
<main class="hub hub-{{.Hub}}">
<h1>{{.Hub}}</h1>
<ul class="hub-items">
{{range .Items}}<li><a href="/{{.Type}}/{{.Slug}}" data-kinetic-link data-slug="{{.Slug}}" data-type="{{.Type}}">{{.Title}}</a></li>
{{end}}</ul>
</main>
</body>
</html>
`
