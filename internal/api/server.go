package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/activity"
	"github.com/JakeFAU/newsroom-edge/internal/apperr"
	"github.com/JakeFAU/newsroom-edge/internal/config"
	"github.com/JakeFAU/newsroom-edge/internal/metrics"
	"github.com/JakeFAU/newsroom-edge/internal/site"
	"github.com/JakeFAU/newsroom-edge/internal/telemetry"
)

// Geocoder resolves coordinates to a place description.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon string) (json.RawMessage, error)
}

// ArticleReader returns articles by slug, typically through the keyed cache.
type ArticleReader interface {
	Get(ctx context.Context, slug string) (site.Article, error)
}

// FooterLoader returns the footer aggregate. It never fails.
type FooterLoader interface {
	Load(ctx context.Context) site.Footer
}

// PrefetchTrigger accepts hover/touch intents.
type PrefetchTrigger interface {
	Intent(signal site.Signal, slug string) bool
}

// Pinger reports whether a downstream dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds the collaborators the handlers call into. Events, Ready and
// Tracer may be nil; a nil Tracer uses the global provider.
type Deps struct {
	Videos   site.VideoStore
	Articles ArticleReader
	Footer   FooterLoader
	Prefetch PrefetchTrigger
	Geocoder Geocoder
	Events   activity.Emitter
	Ready    Pinger
	Clock    site.Clock
	Hasher   site.Hasher
	Tracer   trace.TracerProvider
}

// Server wires HTTP handlers to the content services.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("api"),
	}

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(telemetry.Middleware(deps.Tracer))
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))

		r.Get("/geocode/reverse", s.reverseGeocode)
		r.Get("/articles/{slug}", s.getArticle)
		r.Get("/videos/{id}", s.getVideo)
		r.Get("/footer", s.getFooter)

		r.Group(func(r chi.Router) {
			if cfg.Auth.Enabled {
				r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
			}
			r.Post("/videos/{id}/increment-views", s.incrementViews)
			r.Post("/prefetch/{slug}", s.prefetch)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) now() time.Time {
	if s.deps.Clock == nil {
		return time.Now().UTC()
	}
	return s.deps.Clock.Now()
}

func (s *Server) emit(evt activity.Event) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.Emit(evt)
}

// writeAppError converts err into a JSON error body. Store misses become 404
// and anything unclassified becomes a generic 500; causes are only logged.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, site.ErrNotFound) && !apperr.Is(err, apperr.CodeNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	appErr := apperr.From(err)
	switch appErr.Code {
	case apperr.CodeValidation, apperr.CodeNotFound:
		writeError(w, appErr.Status, appErr.Message)
	case apperr.CodeUpstream:
		s.logger.Error("upstream failure",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeError(w, appErr.Status, appErr.Message)
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
