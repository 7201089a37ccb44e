package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/trace"

	"sheetload/internal/config"
	apperrors "sheetload/internal/errors"
	"sheetload/internal/infrastructure"
	"sheetload/internal/middleware"
)

// RouterConfig carries everything NewRouter wires together
type RouterConfig struct {
	Server     config.ServerConfig
	Dispatcher Dispatcher
	Version    string
	Warehouse  string

	Tracer     trace.Tracer
	Metrics    *infrastructure.Metrics
	Prometheus http.Handler
	Logger     *slog.Logger
}

// NewRouter builds the HTTP API
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errorHandler := apperrors.NewErrorHandler(logger, false)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.NewOTelMiddleware(cfg.Tracer, cfg.Metrics, logger).Handler)
	r.Use(apperrors.NewErrorMiddleware(errorHandler, logger).Handler)
	r.Use(middleware.SecurityHeaders)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Get("/healthz", NewHealthHandler(cfg.Version, cfg.Warehouse, logger).HealthCheck)
	r.Method(http.MethodGet, "/metrics", NewMetricsHandler(cfg.Prometheus))

	r.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if cfg.Server.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, logger).Handler)
		}
		if cfg.Server.MaxBodyBytes > 0 {
			r.Use(middleware.MaxBodySize(cfg.Server.MaxBodyBytes))
		}
		r.Mount("/events", NewEventsHandler(cfg.Dispatcher, errorHandler, logger).Routes())
	})

	return r
}
