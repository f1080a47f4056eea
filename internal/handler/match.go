package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/idempotency"
	"github.com/gatherly/pushpipe/internal/queue"
	"github.com/gatherly/pushpipe/internal/store"
)

// MatchHandler watches the likes collection for the is_mutual rising edge
// and enqueues one notification per participant when a match forms.
type MatchHandler struct {
	stores *store.Registry
	lock   *idempotency.Lock
	queue  *queue.Service
	logger *zap.Logger
}

func NewMatchHandler(stores *store.Registry, lock *idempotency.Lock, q *queue.Service, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{stores: stores, lock: lock, queue: q, logger: logger}
}

func (h *MatchHandler) Handle(ctx context.Context, change domain.ChangeEvent) error {
	// Deletion: no after state, nothing to do.
	if len(change.After) == 0 {
		return nil
	}

	var after domain.LikeRecord
	if err := json.Unmarshal(change.After, &after); err != nil {
		return fmt.Errorf("decode like record: %w", err)
	}
	var before domain.LikeRecord
	if len(change.Before) > 0 {
		if err := json.Unmarshal(change.Before, &before); err != nil {
			return fmt.Errorf("decode prior like record: %w", err)
		}
	}

	// Rising edge only: the flag flipping to true is the match event.
	// Every other transition (already mutual, un-mutual, unrelated field
	// writes) is silence.
	if before.IsMutual || !after.IsMutual {
		return nil
	}

	if after.EventID == "" || after.SessionID == "" || after.TargetSessionID == "" {
		h.logger.Warn("mutual like record missing identities, skipping",
			zap.String("event_id", after.EventID))
		return nil
	}

	key := idempotency.MatchKey(after.SessionID, after.TargetSessionID, after.EventID)
	acquired, err := h.lock.Claim(ctx, change.Partition, key)
	if err != nil {
		return err
	}
	if !acquired {
		// Another redundant delivery already owns this match.
		return nil
	}

	part, ok := h.stores.Get(change.Partition)
	if !ok {
		return domain.ErrUnknownPartition
	}

	nameA := h.displayName(ctx, part, after.EventID, after.SessionID)
	nameB := h.displayName(ctx, part, after.EventID, after.TargetSessionID)

	// One job per participant, each naming the other as actor. Both
	// enqueues are awaited; there is no cross-job transaction, so a crash
	// between them can notify one side only.
	jobs := []*domain.NotificationJob{
		h.buildJob(after.EventID, after.SessionID, after.TargetSessionID, nameB),
		h.buildJob(after.EventID, after.TargetSessionID, after.SessionID, nameA),
	}

	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job *domain.NotificationJob) {
			defer wg.Done()
			errs[i] = h.queue.Enqueue(ctx, change.Partition, job)
		}(i, job)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (h *MatchHandler) buildJob(eventID, subject, actor, actorName string) *domain.NotificationJob {
	return &domain.NotificationJob{
		Type:             domain.JobTypeMatch,
		SubjectSessionID: subject,
		ActorSessionID:   actor,
		EventID:          eventID,
		AggregationKey:   fmt.Sprintf("match:%s:%s", eventID, subject),
		Payload: domain.Payload{
			Title: "It's a match!",
			Body:  fmt.Sprintf("You and %s liked each other", actorName),
			Data:  map[string]string{"actorSessionId": actor},
		},
	}
}

// displayName resolves best-effort; any failure degrades to the fallback.
func (h *MatchHandler) displayName(ctx context.Context, part *store.Partition, eventID, sessionID string) string {
	name, err := part.Profiles.DisplayNameBySession(ctx, eventID, sessionID)
	if err != nil || name == "" {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			h.logger.Warn("display name lookup failed",
				zap.String("session", sessionID), zap.Error(err))
		}
		return fallbackName
	}
	return name
}
