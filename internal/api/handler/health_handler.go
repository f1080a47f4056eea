package handler

import (
	"net/http"

	"github.com/gatherly/pushpipe/internal/store"
)

// HealthHandler serves the liveness probe endpoint.
type HealthHandler struct {
	stores *store.Registry
}

func NewHealthHandler(stores *store.Registry) *HealthHandler {
	return &HealthHandler{stores: stores}
}

// Health handles GET /health
//
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"partitions": len(h.stores.Order()),
	})
}
