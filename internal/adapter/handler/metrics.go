package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves Prometheus metrics collected by the OpenTelemetry exporter.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandlerFor serves the given gatherer.
func NewMetricsHandlerFor(g prometheus.Gatherer) *MetricsHandler {
	return &MetricsHandler{
		handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true}),
	}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.handler.ServeHTTP(w, r)
}
