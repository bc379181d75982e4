// Package web serves the validation HTTP API.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheetcast/internal/batch"
	"github.com/JonMunkholm/sheetcast/internal/config"
	"github.com/JonMunkholm/sheetcast/internal/metrics"
	"github.com/JonMunkholm/sheetcast/internal/specification"
	"github.com/JonMunkholm/sheetcast/internal/store"
	"github.com/JonMunkholm/sheetcast/internal/template"
	"github.com/JonMunkholm/sheetcast/internal/web/middleware"
)

// Recorder persists finished validations. *store.Recorder implements it.
type Recorder interface {
	Record(ctx context.Context, template string, report batch.Report) (store.Run, error)
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records validations and serves the metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRecorder persists every finished validation.
func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithTemplateConfig replaces the default template config, typically to
// register custom scalars.
func WithTemplateConfig(c template.Config) Option {
	return func(s *Server) { s.templateConfig = c }
}

// entry is a registered template and its compiled specification.
type entry struct {
	template *template.Template
	spec     *specification.Specification
}

// Server is the HTTP API server.
type Server struct {
	cfg            *config.Config
	templates      map[string]entry
	names          []string
	templateConfig template.Config
	limiter        *Limiter
	metrics        *metrics.Metrics
	recorder       Recorder

	router *chi.Mux
	server *http.Server
}

// NewServer compiles every template of reg and builds the router. A
// template that does not compile is a startup error.
func NewServer(cfg *config.Config, reg *template.Registry, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:            cfg,
		templates:      make(map[string]entry, reg.Len()),
		templateConfig: template.NewConfig(nil),
		limiter:        NewLimiter(cfg.Validation.MaxConcurrent, cfg.Validation.MaxWaitTime),
		router:         chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New("", false)
	}

	for _, t := range reg.All() {
		spec, err := t.Apply(s.templateConfig)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", t.Name(), err)
		}
		s.templates[t.Name()] = entry{template: t, spec: spec}
		s.names = append(s.names, t.Name())
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics.Enabled() {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))

		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{name}", s.handleGetTemplate)
		r.Post("/templates/{name}/validate", s.handleValidate)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr, "templates", len(s.names))
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight validations.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Limiter returns the validation limiter.
func (s *Server) Limiter() *Limiter { return s.limiter }

// Router returns the router for tests.
func (s *Server) Router() *chi.Mux { return s.router }

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
