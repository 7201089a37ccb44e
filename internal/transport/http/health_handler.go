package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"sheetload/pkg/contracts"
)

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Warehouse string `json:"warehouse"`
	Uptime    string `json:"uptime"`

	Build contracts.VersionInfo `json:"build"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	version   string
	warehouse string
	started   time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, warehouse string, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		version:   version,
		warehouse: warehouse,
		started:   time.Now(),
		logger:    logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Warehouse: h.warehouse,
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		Build:     contracts.GetVersionInfo(),
	})
}
