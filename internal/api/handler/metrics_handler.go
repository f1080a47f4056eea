package handler

import (
	"net/http"

	"github.com/gatherly/pushpipe/internal/breaker"
	"github.com/gatherly/pushpipe/internal/store"
)

// MetricsHandler serves a human-readable JSON pipeline snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	stores  *store.Registry
	breaker *breaker.Breaker
}

func NewMetricsHandler(stores *store.Registry, brk *breaker.Breaker) *MetricsHandler {
	return &MetricsHandler{stores: stores, breaker: brk}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time pipeline snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	partitions := make([]string, 0, len(h.stores.Order()))
	for _, id := range h.stores.Order() {
		partitions = append(partitions, string(id))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"partitions":        partitions,
		"default_partition": string(h.stores.DefaultID()),
		"breaker_entries":   h.breaker.Len(),
	})
}
