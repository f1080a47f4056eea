// Package queue implements the durable notification job queue: deduplicated
// enqueue, partition-scoped drain with staleness and retry bookkeeping, and
// the reactive wake signal consumed by the drainer worker.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/dispatch"
	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/store"
)

// Hooks carries the metric callback functions injected by main.
// Using a struct keeps the service constructor signature clean.
type Hooks struct {
	OnEnqueued func(typ domain.JobType)
	OnDeduped  func(typ domain.JobType)
	OnSent     func(typ domain.JobType, latency time.Duration)
	OnFailed   func(typ domain.JobType, reason string)
	OnSkipped  func(typ domain.JobType)
}

func (h *Hooks) fillNops() {
	if h.OnEnqueued == nil {
		h.OnEnqueued = func(domain.JobType) {}
	}
	if h.OnDeduped == nil {
		h.OnDeduped = func(domain.JobType) {}
	}
	if h.OnSent == nil {
		h.OnSent = func(domain.JobType, time.Duration) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.JobType, string) {}
	}
	if h.OnSkipped == nil {
		h.OnSkipped = func(domain.JobType) {}
	}
}

// Options bundles the queue's tuning knobs.
type Options struct {
	DedupWindow time.Duration
	StaleAfter  time.Duration
	MaxAttempts int
	DrainBatch  int
}

// Service coordinates job persistence and dispatch. A job always lives and
// drains in the partition it was created in; no cross-partition
// coordination exists here.
type Service struct {
	stores     *store.Registry
	dispatcher *dispatch.Dispatcher
	opts       Options
	hooks      Hooks
	wake       map[domain.PartitionID]chan struct{}
	logger     *zap.Logger
}

func NewService(
	stores *store.Registry,
	dispatcher *dispatch.Dispatcher,
	opts Options,
	hooks Hooks,
	logger *zap.Logger,
) *Service {
	hooks.fillNops()
	wake := make(map[domain.PartitionID]chan struct{}, len(stores.Order()))
	for _, id := range stores.Order() {
		wake[id] = make(chan struct{}, 1)
	}
	return &Service{
		stores:     stores,
		dispatcher: dispatcher,
		opts:       opts,
		hooks:      hooks,
		wake:       wake,
		logger:     logger,
	}
}

// Enqueue inserts a queued job after the dedup probe. A job whose
// (aggregation key, subject, event, type) identity was already enqueued
// within the dedup window is dropped silently; logged, never an error.
//
// The probe and the insert are separate statements, so two racing Enqueue
// calls with the same identity can both land. At-most-once for
// handler-produced jobs is guaranteed by the idempotency lock upstream;
// the window here only collapses near-duplicate traffic. Any new producer
// bypassing the lock must bring its own claim.
func (s *Service) Enqueue(ctx context.Context, partition domain.PartitionID, job *domain.NotificationJob) error {
	part, ok := s.stores.Get(partition)
	if !ok {
		return domain.ErrUnknownPartition
	}

	dup, err := part.Jobs.HasRecentDuplicate(ctx, job, s.opts.DedupWindow)
	if err != nil {
		return fmt.Errorf("dedup probe: %w", err)
	}
	if dup {
		s.logger.Info("duplicate job dropped",
			zap.String("aggregation_key", job.AggregationKey),
			zap.String("subject", job.SubjectSessionID),
			zap.String("type", string(job.Type)))
		s.hooks.OnDeduped(job.Type)
		return nil
	}

	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = domain.StatusQueued
	job.Attempts = 0
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := part.Jobs.Insert(ctx, job); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	s.hooks.OnEnqueued(job.Type)
	s.wakeUp(partition)
	return nil
}

// Wake returns the partition's reactive drain signal. The drainer worker
// selects on it; a missing partition gets a nil channel, which never fires.
func (s *Service) Wake(partition domain.PartitionID) <-chan struct{} {
	return s.wake[partition]
}

// wakeUp is non-blocking: a pending signal already covers this insert.
func (s *Service) wakeUp(partition domain.PartitionID) {
	ch, ok := s.wake[partition]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Drain processes up to DrainBatch of the oldest queued jobs in one
// partition, sequentially. Jobs left queued (transient failures, or more
// waiting beyond the batch) are picked up by the next sweep or wake.
func (s *Service) Drain(ctx context.Context, partition domain.PartitionID) error {
	part, ok := s.stores.Get(partition)
	if !ok {
		return domain.ErrUnknownPartition
	}

	jobs, err := part.Jobs.OldestQueued(ctx, s.opts.DrainBatch)
	if err != nil {
		return fmt.Errorf("select queued jobs: %w", err)
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err // budget exhausted; the rest resumes next tick
		}
		s.process(ctx, partition, part, job)
	}
	return nil
}

// process runs one job through the drain state machine:
// queued -> {sent, skipped, permanent-failure}, or queued -> queued with
// the attempt counter bumped.
func (s *Service) process(ctx context.Context, partition domain.PartitionID, part *store.Partition, job *domain.NotificationJob) {
	start := time.Now()
	log := s.logger.With(
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("partition", string(partition)),
	)

	if time.Since(job.CreatedAt) > s.opts.StaleAfter {
		if err := part.Jobs.MarkPermanentFailure(ctx, job.ID, "expired", ""); err != nil {
			log.Error("failed to mark job expired", zap.Error(err))
			return
		}
		s.hooks.OnFailed(job.Type, "expired")
		log.Info("job expired before send", zap.Duration("age", time.Since(job.CreatedAt)))
		return
	}

	if job.SkipPush {
		if err := part.Jobs.MarkSkipped(ctx, job.ID, "push disabled for job"); err != nil {
			log.Error("failed to mark job skipped", zap.Error(err))
			return
		}
		s.hooks.OnSkipped(job.Type)
		return
	}

	// Token lookup stays inside the job's own partition; there is no
	// cross-partition token search on this path.
	tokens, err := part.Tokens.ActiveBySession(ctx, job.SubjectSessionID)
	if err != nil {
		log.Error("token lookup failed", zap.Error(err))
		s.recordFailure(ctx, part, job, err, log)
		return
	}
	if len(tokens) == 0 {
		if err := part.Jobs.MarkPermanentFailure(ctx, job.ID, "no tokens", ""); err != nil {
			log.Error("failed to mark job failed", zap.Error(err))
			return
		}
		s.hooks.OnFailed(job.Type, "no tokens")
		return
	}

	result, err := s.dispatcher.Dispatch(ctx, dispatch.Notification{
		Type:             job.Type,
		Title:            job.Payload.Title,
		Body:             job.Payload.Body,
		Data:             job.Payload.Data,
		AggregationKey:   job.AggregationKey,
		SubjectSessionID: job.SubjectSessionID,
		ActorSessionID:   job.ActorSessionID,
		EventID:          job.EventID,
	}, tokens)
	if err != nil {
		// Context cancelled mid-dispatch; the job stays queued for the
		// next drain without burning an attempt.
		log.Warn("dispatch interrupted", zap.Error(err))
		return
	}

	if result.AllOK() {
		if err := part.Jobs.MarkSent(ctx, job.ID); err != nil {
			log.Error("failed to mark job sent", zap.Error(err))
			return
		}
		s.hooks.OnSent(job.Type, time.Since(start))
		log.Info("job sent",
			zap.Int("tokens", result.Sent),
			zap.Duration("latency", time.Since(start)))
		return
	}

	s.recordFailure(ctx, part, job, result.FirstError(), log)
}

// recordFailure bumps the attempt counter; at the ceiling the job becomes a
// permanent failure with the captured error, otherwise it stays queued for
// the next drain (no per-job backoff).
func (s *Service) recordFailure(ctx context.Context, part *store.Partition, job *domain.NotificationJob, sendErr error, log *zap.Logger) {
	msg := "send failed"
	if sendErr != nil {
		msg = sendErr.Error()
	}

	attempts, err := part.Jobs.RecordFailure(ctx, job.ID, msg)
	if err != nil {
		log.Error("failed to record attempt", zap.Error(err))
		return
	}

	if attempts >= s.opts.MaxAttempts {
		if err := part.Jobs.MarkPermanentFailure(ctx, job.ID, "max attempts", msg); err != nil {
			log.Error("failed to mark job failed", zap.Error(err))
			return
		}
		s.hooks.OnFailed(job.Type, "max attempts")
		log.Warn("job failed permanently", zap.Int("attempts", attempts), zap.String("error", msg))
		return
	}

	log.Warn("job send failed, will retry on next drain",
		zap.Int("attempts", attempts), zap.String("error", msg))
}
