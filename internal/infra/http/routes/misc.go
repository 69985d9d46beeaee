package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/armorlens/api/internal/infra/http/handler"
)

// registerHealthRoutes registers health check and metrics endpoints.
func registerHealthRoutes(router Router, h *handler.HealthHandler) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", promhttp.Handler().ServeHTTP)
}
