// Package api exposes the image library, estimation views and curation
// actions as a JSON HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwantia/illustag/internal/curation"
	"github.com/mwantia/illustag/internal/estimation"
	"github.com/mwantia/illustag/internal/library"
	"github.com/mwantia/illustag/pkg/db/store"
	"github.com/mwantia/illustag/pkg/log"
)

type Config struct {
	// RateRequests per RateInterval are allowed on estimation views.
	// Zero disables the limit.
	RateRequests int
	RateInterval time.Duration

	MaxUploadSize int64

	// Auth guards every mutating route when set.
	Auth *Authenticator

	// MetricsPath serves the registry when both are set.
	MetricsPath string
	Registry    *prometheus.Registry
}

type Server struct {
	cfg     Config
	store   store.MetadataStore
	library *library.Library
	cache   *estimation.Cache
	ledger  *curation.Ledger
	log     log.LoggerService
}

func NewServer(cfg Config, st store.MetadataStore, lib *library.Library, cache *estimation.Cache, ledger *curation.Ledger, logger log.LoggerService) *Server {
	return &Server{
		cfg:     cfg,
		store:   st,
		library: lib,
		cache:   cache,
		ledger:  ledger,
		log:     logger.Named("api"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if s.cfg.MetricsPath != "" && s.cfg.Registry != nil {
		r.Handle(s.cfg.MetricsPath, promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Route("/images", func(r chi.Router) {
			r.Get("/", s.listImages)
			r.Get("/{id}", s.getImage)
			r.Get("/{id}/file", s.getImageFile)

			r.With(rateLimit(s.cfg.RateRequests, s.cfg.RateInterval)).
				Get("/{id}/estimations", s.getEstimations)

			r.Group(func(r chi.Router) {
				r.Use(s.cfg.Auth.Middleware)
				r.Post("/", s.uploadImage)
				r.Delete("/{id}", s.deleteImage)
			})
		})

		r.Get("/checksums", s.findChecksum)
		r.Route("/checksums/{id}", func(r chi.Router) {
			r.Get("/", s.getChecksum)
			r.Get("/tags/{tagID}", s.classify)

			r.Group(func(r chi.Router) {
				r.Use(s.cfg.Auth.Middleware)
				r.Put("/confirmed/{tagID}", s.curate("confirm", s.ledger.Confirm))
				r.Delete("/confirmed/{tagID}", s.curate("unconfirm", s.ledger.Unconfirm))
				r.Put("/rejected/{tagID}", s.curate("reject", s.ledger.Reject))
				r.Delete("/rejected/{tagID}", s.curate("unreject", s.ledger.Unreject))
			})
		})

		r.Get("/tags", s.listTags)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Health(r.Context()); err != nil {
		s.log.Error("Health check failed: %v", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
