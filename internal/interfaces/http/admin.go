package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"keepmore/internal/domain/analytics"
)

// MetricsCollector is implemented by *analytics.Service.
type MetricsCollector interface {
	Collect(ctx context.Context) (*analytics.Metrics, error)
}

type AdminHandler struct {
	metrics MetricsCollector
	logger  *zap.Logger
}

func NewAdminHandler(metrics MetricsCollector, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{metrics: metrics, logger: logger.Named("admin_handler")}
}

type metricsResponse struct {
	Success bool               `json:"success"`
	Metrics *analytics.Metrics `json:"metrics"`
}

// HandleMetrics serves the dashboard numbers. Authentication is done by
// middleware.AdminAuth.
func (h *AdminHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.metrics.Collect(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load metrics")
		return
	}
	writeJSON(w, http.StatusOK, metricsResponse{Success: true, Metrics: m})
}
