package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/file-analysis/internal/middleware"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

// RouterConfig collects the handlers and limits served by NewRouter.
type RouterConfig struct {
	Health    *HealthHandler
	Threads   *ThreadHandler
	Files     *FileHandler
	Runs      *RunHandler
	Analyses  *AnalysisHandler
	Artifacts *ArtifactHandler

	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Logger            *logger.Logger
}

// NewRouter builds the HTTP routes. Health and metrics endpoints are public;
// everything under /api/v1 requires a bearer token.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/files", cfg.Files.Upload)
		r.Delete("/files/{id}", cfg.Files.Delete)

		r.Route("/threads", func(r chi.Router) {
			r.Post("/", cfg.Threads.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", cfg.Threads.Delete)
				r.Post("/messages", cfg.Threads.AddMessage)

				r.Get("/runs", cfg.Runs.List)
				r.Post("/runs", cfg.Runs.Run)
				r.Post("/runs/stream", cfg.Runs.Stream)
			})
		})

		r.With(middleware.RequireScope(middleware.ScopeAnalyses)).Post("/analyses", cfg.Analyses.Create)

		r.Get("/artifacts/{name}", cfg.Artifacts.Get)
	})

	return r
}
