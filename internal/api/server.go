package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/audioscribe/internal/config"
	"github.com/snarg/audioscribe/internal/metrics"
	"github.com/snarg/audioscribe/internal/pipeline"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, p *pipeline.Pipeline, mqtt MQTTStatus, version string, startTime time.Time, log zerolog.Logger) *Server {
	health := NewHealthHandler(HealthInfo{
		Engine:     p.Engine().Name(),
		Model:      p.Engine().Model(),
		Strategy:   p.Strategy(),
		Transcoder: p.Decoder().TranscoderName(),
	}, p, mqtt, version, startTime)
	upload := NewTranscribeHandler(p, 32<<20, log)

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(cfg, upload, health, log),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// NewRouter builds the route tree. Health, root and metrics stay open; the
// upload routes sit behind bearer auth and the body size cap.
func NewRouter(cfg *config.Config, upload *TranscribeHandler, health http.Handler, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORSWithOrigins(cfg.CORSOrigins))

	r.Get("/", health.ServeHTTP)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(metrics.InstrumentHandler)
		r.Use(BearerAuth(cfg.AuthToken))
		r.Use(MaxBodySize(cfg.MaxUploadBytes()))

		// Legacy path kept for existing clients.
		upload.Routes(r)
		r.Route("/api/v1", upload.Routes)
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
