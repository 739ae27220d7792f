package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/coursesearch/internal/service"
	"github.com/utafrali/coursesearch/pkg/health"
	"github.com/utafrali/coursesearch/pkg/middleware"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	ServiceName    string
	AdminToken     string
	CacheMaxAge    int
	RequestTimeout time.Duration
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
}

// DefaultRouterConfig returns the settings used when nothing is configured.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ServiceName:    "course-search",
		RequestTimeout: 30 * time.Second,
		CORS:           middleware.DefaultCORSConfig(),
	}
}

// NewRouter creates a chi router with all course search routes registered.
func NewRouter(
	searchService *service.SearchService,
	indexingService *service.IndexingService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName, "/health/live", "/health/ready", "/metrics"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	searchHandler := NewSearchHandler(searchService, logger)
	adminHandler := NewAdminHandler(indexingService, logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", adminHandler.Health)

		r.Group(func(r chi.Router) {
			if cfg.RequestTimeout > 0 {
				r.Use(chimw.Timeout(cfg.RequestTimeout))
			}
			r.Use(chimw.Compress(5))
			r.Use(middleware.CacheControl(cfg.CacheMaxAge))

			r.With(middleware.Operation("search")).Get("/search", searchHandler.Search)
			r.With(middleware.Operation("suggest")).Get("/search/suggest", searchHandler.Suggest)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminToken(cfg.AdminToken, logger))
			r.Use(middleware.Operation("reindex"))
			r.Post("/reindex", adminHandler.Reindex)
		})
	})

	return r
}
