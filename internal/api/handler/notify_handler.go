package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/gatherly/pushpipe/internal/api/middleware"
	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/notify"
)

// NotifyHandler serves direct push requests, bypassing the durable queue.
type NotifyHandler struct {
	sender       *notify.Sender
	legacySecret string
	logger       *zap.Logger
}

func NewNotifyHandler(sender *notify.Sender, legacySecret string, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{sender: sender, legacySecret: legacySecret, logger: logger}
}

// Send handles POST /api/v1/notify
//
// @Summary     Send a push directly to one recipient
// @Tags        notify
// @Accept      json
// @Produce     json
// @Param       body  body      notify.Request  true  "Push payload"
// @Success     202
// @Failure     403   {object}  map[string]string
// @Failure     422   {object}  map[string]string
// @Failure     429   {object}  map[string]string
// @Router      /api/v1/notify [post]
func (h *NotifyHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req notify.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.sender.Send(r.Context(), &req); err != nil {
		h.logger.Warn("direct push failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("type", string(req.Type)),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type legacyNotifyRequest struct {
	TargetSessionID string            `json:"targetSessionId"`
	Title           string            `json:"title"`
	Body            string            `json:"body"`
	Data            map[string]string `json:"data,omitempty"`
}

// SendLegacy handles POST /legacy/notify
//
// Pre-pipeline integration kept for old callers: shared-secret header
// auth, no dedup, no breaker, no mute check.
//
// @Summary     Legacy single-recipient push
// @Tags        notify
// @Accept      json
// @Param       X-Notify-Secret  header  string  true  "Shared secret"
// @Success     202
// @Failure     401  {object}  map[string]string
// @Router      /legacy/notify [post]
func (h *NotifyHandler) SendLegacy(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Notify-Secret")
	if h.legacySecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.legacySecret)) != 1 {
		mapError(w, domain.ErrUnauthorized)
		return
	}

	var req legacyNotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.sender.SendLegacy(r.Context(), req.TargetSessionID, req.Title, req.Body, req.Data); err != nil {
		h.logger.Warn("legacy push failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
