// Package httpapi wires the HTTP surface: routing, auth middleware, and the
// translation of domain errors into status codes.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"soundvault/internal/features"
	"soundvault/internal/identity"
	"soundvault/internal/platform/metrics"
	principalservice "soundvault/internal/principal/service"
	purchaseservice "soundvault/internal/purchase/service"
	streamservice "soundvault/internal/stream/service"
	trackservice "soundvault/internal/track/service"
)

// Server holds the handlers' collaborators.
type Server struct {
	resolver   *identity.Resolver
	principals *principalservice.Service
	tracks     *trackservice.Service
	purchases  *purchaseservice.Service
	streams    *streamservice.Service
	flags      *features.Flags
	logger     *slog.Logger
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

func New(resolver *identity.Resolver, principals *principalservice.Service, tracks *trackservice.Service, purchases *purchaseservice.Service, streams *streamservice.Service, flags *features.Flags, opts ...Option) *Server {
	s := &Server{
		resolver:   resolver,
		principals: principals,
		tracks:     tracks,
		purchases:  purchases,
		streams:    streams,
		flags:      flags,
		logger:     slog.Default(),
		metrics:    metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestContext)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/features", func(r chi.Router) {
		r.Get("/", s.handleFeatures)
		r.Get("/payment", s.handleFeaturesPayment)
		r.Get("/status", s.handleFeaturesStatus)
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(s.requireCredential).Post("/register", s.handleRegister)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/me", s.handleMe)
			r.Put("/me", s.handleUpdateMe)
		})
	})

	r.Route("/tracks", func(r chi.Router) {
		r.With(s.optionalAuth).Get("/", s.handleListTracks)
		r.With(s.optionalAuth).Get("/{trackID}", s.handleGetTrack)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleCreateTrack)
			r.Get("/mine", s.handleListMyTracks)
			r.Put("/{trackID}", s.handleUpdateTrack)
			r.Delete("/{trackID}", s.handleDeleteTrack)
			r.Post("/{trackID}/upload/audio", s.handleUploadAudio)
			r.Post("/{trackID}/upload/cover", s.handleUploadCover)
		})
	})

	r.Route("/purchases", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/", s.handleCreatePurchase)
		r.Get("/", s.handleListPurchases)
		r.Get("/{purchaseID}", s.handleGetPurchase)
		r.Get("/track/{trackID}/download", s.handleDownloadURL)
	})

	r.Route("/stream", func(r chi.Router) {
		r.With(s.optionalAuth).Post("/{trackID}", s.handleStreamURL)
		r.With(s.optionalAuth).Post("/{trackID}/play", s.handleRecordPlay)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
