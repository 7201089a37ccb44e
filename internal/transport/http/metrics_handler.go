package http

import (
	"net/http"

	"github.com/go-chi/render"

	apperrors "sheetload/internal/errors"
)

// MetricsHandler serves the Prometheus scrape endpoint
type MetricsHandler struct {
	exporter http.Handler
}

// NewMetricsHandler wraps the exporter's handler. A nil exporter means the
// Prometheus exporter is disabled and every scrape gets a 503.
func NewMetricsHandler(exporter http.Handler) *MetricsHandler {
	return &MetricsHandler{exporter: exporter}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		render.Render(w, r, apperrors.NewProblemDetails(
			http.StatusServiceUnavailable,
			apperrors.TypeServiceDown,
			"Service Unavailable",
			"metrics exporter is disabled",
			r.URL.Path,
		))
		return
	}
	h.exporter.ServeHTTP(w, r)
}
