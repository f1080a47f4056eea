package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/gatherly/pushpipe/internal/api/middleware"
	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/region"
)

// EventHandler registers events with the regional router.
type EventHandler struct {
	router *region.Router
	logger *zap.Logger
}

func NewEventHandler(router *region.Router, logger *zap.Logger) *EventHandler {
	return &EventHandler{router: router, logger: logger}
}

type registerEventRequest struct {
	ID      string `json:"id"`
	Country string `json:"country"`
}

// Register handles POST /api/v1/events
//
// @Summary     Register an event in its regional partition
// @Tags        events
// @Accept      json
// @Produce     json
// @Success     201  {object}  map[string]string
// @Failure     422  {object}  map[string]string
// @Router      /api/v1/events [post]
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" {
		mapError(w, domain.ErrInvalidEvent)
		return
	}
	if req.Country == "" {
		mapError(w, domain.ErrInvalidCountry)
		return
	}

	pid, err := h.router.Register(r.Context(), &domain.Event{ID: req.ID, Country: req.Country})
	if err != nil {
		h.logger.Warn("event registration failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("event_id", req.ID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"id":        req.ID,
		"partition": string(pid),
	})
}
