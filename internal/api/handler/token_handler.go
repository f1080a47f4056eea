package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apimw "github.com/gatherly/pushpipe/internal/api/middleware"
	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/region"
	"github.com/gatherly/pushpipe/internal/store"
)

// TokenHandler handles push token registration.
type TokenHandler struct {
	stores *store.Registry
	router *region.Router
	logger *zap.Logger
}

func NewTokenHandler(stores *store.Registry, router *region.Router, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{stores: stores, router: router, logger: logger}
}

// Register handles POST /api/v1/tokens
//
// @Summary     Register a push token
// @Tags        tokens
// @Accept      json
// @Produce     json
// @Param       body  body      domain.RegisterTokenRequest  true  "Token payload"
// @Success     201   {object}  domain.PushToken
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/tokens [post]
func (h *TokenHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		mapError(w, err)
		return
	}

	pid := h.router.ResolveByCountry(req.Country)
	part, ok := h.stores.Get(pid)
	if !ok {
		mapError(w, domain.ErrUnknownPartition)
		return
	}

	now := time.Now().UTC()
	token := &domain.PushToken{
		ID:             uuid.NewString(),
		SessionID:      req.SessionID,
		Platform:       req.Platform,
		Token:          req.Token,
		InstallationID: req.InstallationID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := part.Tokens.Register(r.Context(), token); err != nil {
		h.logger.Warn("token registration failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("partition", string(pid)),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, token)
}
