package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/gatherly/pushpipe/internal/api/middleware"
	"github.com/gatherly/pushpipe/internal/domain"
	changehandler "github.com/gatherly/pushpipe/internal/handler"
)

// ChangeHandler ingests document change notifications from the trigger
// runtime. A non-2xx response makes the runtime redeliver, so only
// unexpected errors surface as 5xx; handlers swallow benign conditions.
type ChangeHandler struct {
	mux    *changehandler.Mux
	logger *zap.Logger
}

func NewChangeHandler(mux *changehandler.Mux, logger *zap.Logger) *ChangeHandler {
	return &ChangeHandler{mux: mux, logger: logger}
}

type changeRequest struct {
	Kind      domain.ChangeKind  `json:"kind"`
	Partition domain.PartitionID `json:"partition"`
	Before    json.RawMessage    `json:"before,omitempty"`
	After     json.RawMessage    `json:"after,omitempty"`
}

// Ingest handles POST /internal/v1/changes/{collection}
//
// @Summary     Ingest a document change
// @Tags        changes
// @Accept      json
// @Success     202
// @Failure     422  {object}  map[string]string
// @Failure     500  {object}  map[string]string
// @Router      /internal/v1/changes/{collection} [post]
func (h *ChangeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	collection := domain.Collection(chi.URLParam(r, "collection"))

	var req changeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Partition == "" {
		mapError(w, domain.ErrUnknownPartition)
		return
	}

	err := h.mux.Handle(r.Context(), domain.ChangeEvent{
		Collection: collection,
		Kind:       req.Kind,
		Partition:  req.Partition,
		Before:     req.Before,
		After:      req.After,
	})
	if err != nil {
		h.logger.Error("change handling failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("collection", string(collection)),
			zap.String("kind", string(req.Kind)),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
