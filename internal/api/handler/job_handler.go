package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/store"
)

// JobHandler exposes read-only queue inspection endpoints.
type JobHandler struct {
	stores *store.Registry
	logger *zap.Logger
}

func NewJobHandler(stores *store.Registry, logger *zap.Logger) *JobHandler {
	return &JobHandler{stores: stores, logger: logger}
}

// GetByID handles GET /api/v1/jobs/{id}
//
// @Summary  Get a notification job by ID
// @Tags     jobs
// @Produce  json
// @Param    id         path      string  true   "Job UUID"
// @Param    partition  query     string  false  "Partition to look in (default partition if omitted)"
// @Success  200  {object}  domain.NotificationJob
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/jobs/{id} [get]
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	part, err := h.partition(r)
	if err != nil {
		mapError(w, err)
		return
	}

	job, err := part.Jobs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// List handles GET /api/v1/jobs
//
// @Summary  List notification jobs with filtering and pagination
// @Tags     jobs
// @Produce  json
// @Param    partition  query     string  false  "Partition to look in"
// @Param    status     query     string  false  "Filter by status"
// @Param    type       query     string  false  "Filter by type"
// @Param    page       query     int     false  "Page number (default 1)"
// @Param    limit      query     int     false  "Items per page (default 20, max 100)"
// @Success  200        {object}  map[string]any
// @Router   /api/v1/jobs [get]
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	part, err := h.partition(r)
	if err != nil {
		mapError(w, err)
		return
	}

	filter := parseJobFilter(r)
	jobs, total, err := part.Jobs.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("job list failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  jobs,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func (h *JobHandler) partition(r *http.Request) (*store.Partition, error) {
	if pid := r.URL.Query().Get("partition"); pid != "" {
		part, ok := h.stores.Get(domain.PartitionID(pid))
		if !ok {
			return nil, domain.ErrUnknownPartition
		}
		return part, nil
	}
	return h.stores.Default(), nil
}

func parseJobFilter(r *http.Request) domain.JobFilter {
	q := r.URL.Query()
	filter := domain.JobFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		status := domain.JobStatus(s)
		filter.Status = &status
	}
	if t := q.Get("type"); t != "" {
		typ := domain.JobType(t)
		filter.Type = &typ
	}
	return filter
}
