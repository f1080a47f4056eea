package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/breaker"
	"github.com/gatherly/pushpipe/internal/dispatch"
	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/region"
	"github.com/gatherly/pushpipe/internal/store"
)

// Request is a direct push request: one recipient, no durable job.
type Request struct {
	Type            domain.JobType    `json:"type"`
	Title           string            `json:"title"`
	Body            string            `json:"body"`
	TargetSessionID string            `json:"targetSessionId"`
	SenderSessionID string            `json:"senderSessionId,omitempty"`
	Data            map[string]string `json:"data,omitempty"`
}

func (r *Request) Validate() error {
	if !r.Type.IsValid() {
		return domain.ErrInvalidType
	}
	if r.TargetSessionID == "" {
		return domain.ErrInvalidSession
	}
	if r.Title == "" {
		return domain.ErrInvalidTitle
	}
	return nil
}

// Sender pushes directly through the dispatcher, bypassing the durable
// queue. Used by the interactive notify endpoint and the legacy path.
type Sender struct {
	stores     *store.Registry
	router     *region.Router
	breaker    *breaker.Breaker
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger

	// OnSuppressed is an optional metric callback invoked when the
	// breaker rejects a request.
	OnSuppressed func(typ domain.JobType)
}

func NewSender(
	stores *store.Registry,
	router *region.Router,
	brk *breaker.Breaker,
	dispatcher *dispatch.Dispatcher,
	logger *zap.Logger,
) *Sender {
	return &Sender{
		stores:     stores,
		router:     router,
		breaker:    brk,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Send pushes immediately. Message-type requests carrying an event id in
// their data honor the recipient's mutes; every request passes the
// circuit breaker before any tokens are loaded.
func (s *Sender) Send(ctx context.Context, req *Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	eventID := req.Data["eventId"]
	if req.Type == domain.JobTypeMessage && eventID != "" && req.SenderSessionID != "" {
		pid, err := s.router.ResolveByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		part, ok := s.stores.Get(pid)
		if !ok {
			return domain.ErrUnknownPartition
		}
		muted, err := part.Profiles.IsMuted(ctx, eventID, req.TargetSessionID, req.SenderSessionID)
		if err != nil {
			return fmt.Errorf("mute lookup: %w", err)
		}
		if muted {
			return domain.ErrMuted
		}
	}

	// Suppression for messages is scoped per source; without a
	// conversation id the sender is the source, so two senders pushing
	// identical content never share a breaker entry.
	source := req.Data["conversationId"]
	if source == "" {
		source = req.SenderSessionID
	}
	if !s.breaker.Allow(req.Type, req.TargetSessionID, source, req.Body) {
		if s.OnSuppressed != nil {
			s.OnSuppressed(req.Type)
		}
		return domain.ErrSuppressed
	}

	tokens, err := s.collectTokens(ctx, req.TargetSessionID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return domain.ErrNoTokens
	}

	result, err := s.dispatcher.Dispatch(ctx, dispatch.Notification{
		Type:             req.Type,
		Title:            req.Title,
		Body:             req.Body,
		Data:             req.Data,
		SubjectSessionID: req.TargetSessionID,
		ActorSessionID:   req.SenderSessionID,
		EventID:          eventID,
	}, tokens)
	if err != nil {
		return err
	}
	if !result.AllOK() {
		return fmt.Errorf("direct push partially failed: %w", result.FirstError())
	}
	return nil
}

// SendLegacy serves the pre-pipeline integration: no mute check, no
// breaker, no dedup. Kept byte-compatible for the old callers until they
// migrate to Send.
func (s *Sender) SendLegacy(ctx context.Context, target, title, body string, data map[string]string) error {
	if target == "" {
		return domain.ErrInvalidSession
	}
	if title == "" {
		return domain.ErrInvalidTitle
	}

	tokens, err := s.collectTokens(ctx, target)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return domain.ErrNoTokens
	}

	result, err := s.dispatcher.Dispatch(ctx, dispatch.Notification{
		Type:             domain.JobTypeGeneric,
		Title:            title,
		Body:             body,
		Data:             data,
		SubjectSessionID: target,
	}, tokens)
	if err != nil {
		return err
	}
	if !result.AllOK() {
		return fmt.Errorf("legacy push partially failed: %w", result.FirstError())
	}
	return nil
}

// collectTokens gathers the target's active tokens from every partition.
// Direct requests carry no event context, so there is no single home
// partition to consult.
func (s *Sender) collectTokens(ctx context.Context, session string) ([]*domain.PushToken, error) {
	var all []*domain.PushToken
	for _, pid := range s.stores.Order() {
		part, ok := s.stores.Get(pid)
		if !ok {
			continue
		}
		tokens, err := part.Tokens.ActiveBySession(ctx, session)
		if err != nil {
			return nil, fmt.Errorf("tokens in partition %s: %w", pid, err)
		}
		all = append(all, tokens...)
	}
	return all, nil
}
