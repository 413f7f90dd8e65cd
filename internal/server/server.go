// Package server exposes the conversion pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mrsinham/dicompixel/internal/audit"
	"github.com/mrsinham/dicompixel/internal/cache"
	"github.com/mrsinham/dicompixel/internal/config"
	"github.com/mrsinham/dicompixel/internal/convert"
	"github.com/mrsinham/dicompixel/internal/metrics"
)

// Server holds the conversion API and its collaborators.
type Server struct {
	cfg            *config.Config
	convertOpts    convert.Options
	cache          cache.Cache
	recorder       audit.Recorder
	history        audit.Reader
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	checks         map[string]Check
}

// Option configures a Server.
type Option func(*Server)

// WithCache enables the result cache for DICOM to raster conversions.
func WithCache(c cache.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithRecorder stores one audit record per request.
func WithRecorder(r audit.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithHistory serves the stored records under GET /api/v1/conversions.
func WithHistory(r audit.Reader) Option {
	return func(s *Server) { s.history = r }
}

// WithMetrics updates m and serves handler on /metrics.
func WithMetrics(m *metrics.Metrics, handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsHandler = handler
	}
}

// WithCheck adds a dependency to /health and /ready.
func WithCheck(name string, check Check) Option {
	return func(s *Server) { s.checks[name] = check }
}

// New validates cfg, prepares the output root and applies opts.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	convertOpts, err := cfg.ConvertOptions()
	if err != nil {
		return nil, err
	}
	convertOpts.Quiet = true

	if err := convert.Init(cfg.Output.Root); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		convertOpts: convertOpts,
		recorder:    audit.NopRecorder{},
		checks:      make(map[string]Check),
	}
	s.checks["storage"] = func(context.Context) error {
		info, err := os.Stat(cfg.Output.Root)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", cfg.Output.Root)
		}
		return nil
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router builds the chi router with the global middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Recovery)
	r.Use(Logging)
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   s.cfg.CORS.AllowedMethods,
		AllowedHeaders:   s.cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type", "Content-Disposition", headerFiles, headerFailed, headerRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.Health)
	r.Get("/ready", s.Ready)

	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/conversions", s.CreateConversion)
		if s.history != nil {
			r.Get("/conversions", s.ListConversions)
			r.Get("/conversions/{requestID}", s.GetConversion)
		}
	})

	return r
}
