package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/idempotency"
	"github.com/gatherly/pushpipe/internal/queue"
	"github.com/gatherly/pushpipe/internal/store"
)

// previewLimit caps the content preview embedded in the notification body.
const previewLimit = 100

// MessageHandler watches the messages collection and enqueues one
// notification for the recipient of each new message.
type MessageHandler struct {
	stores *store.Registry
	lock   *idempotency.Lock
	queue  *queue.Service
	logger *zap.Logger
}

func NewMessageHandler(stores *store.Registry, lock *idempotency.Lock, q *queue.Service, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{stores: stores, lock: lock, queue: q, logger: logger}
}

func (h *MessageHandler) Handle(ctx context.Context, change domain.ChangeEvent) error {
	if len(change.After) == 0 {
		return nil
	}

	var msg domain.MessageRecord
	if err := json.Unmarshal(change.After, &msg); err != nil {
		return fmt.Errorf("decode message record: %w", err)
	}
	if msg.ID == "" || msg.EventID == "" {
		return nil
	}

	acquired, err := h.lock.Claim(ctx, change.Partition, idempotency.MessageKey(msg.ID))
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}

	part, ok := h.stores.Get(change.Partition)
	if !ok {
		return domain.ErrUnknownPartition
	}

	senderName, senderSession := h.resolveSender(ctx, part, &msg)
	recipientSession, err := h.resolveRecipient(ctx, part, &msg)
	if err != nil {
		return err
	}
	if recipientSession == "" {
		h.logger.Warn("message recipient unresolvable, skipping",
			zap.String("message_id", msg.ID), zap.String("event_id", msg.EventID))
		return nil
	}

	// Secondary guard: a one-shot seen marker gates duplicate enqueue even
	// if the lock path were somehow bypassed.
	seen, err := h.lock.Claim(ctx, change.Partition, idempotency.SeenMarkerKey(msg.EventID, msg.ID))
	if err != nil {
		return err
	}
	if !seen {
		return nil
	}

	if senderSession != "" && senderSession == recipientSession {
		return nil
	}

	muted, err := part.Profiles.IsMuted(ctx, msg.EventID, recipientSession, senderSession)
	if err != nil {
		return fmt.Errorf("mute lookup: %w", err)
	}
	if muted {
		return nil
	}

	return h.queue.Enqueue(ctx, change.Partition, &domain.NotificationJob{
		Type:             domain.JobTypeMessage,
		SubjectSessionID: recipientSession,
		ActorSessionID:   senderSession,
		EventID:          msg.EventID,
		AggregationKey:   fmt.Sprintf("message:%s:%s", msg.EventID, h.conversation(&msg, senderSession, recipientSession)),
		Payload: domain.Payload{
			Title: senderName,
			Body:  preview(msg.Content),
			Data: map[string]string{
				"messageId":      msg.ID,
				"conversationId": h.conversation(&msg, senderSession, recipientSession),
			},
		},
	})
}

// resolveSender returns the display name and session id, each falling back
// through the denormalized field, a profile lookup, and (for the name) the
// generic fallback. Name resolution never fails the handler.
func (h *MessageHandler) resolveSender(ctx context.Context, part *store.Partition, msg *domain.MessageRecord) (name, session string) {
	name, session = msg.SenderName, msg.SenderSessionID

	if (name == "" || session == "") && msg.SenderProfileID != "" {
		p, err := part.Profiles.GetByID(ctx, msg.SenderProfileID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				h.logger.Warn("sender profile lookup failed",
					zap.String("profile", msg.SenderProfileID), zap.Error(err))
			}
		} else {
			if name == "" {
				name = p.DisplayName
			}
			if session == "" {
				session = p.SessionID
			}
		}
	}

	if name == "" {
		name = fallbackName
	}
	return name, session
}

func (h *MessageHandler) resolveRecipient(ctx context.Context, part *store.Partition, msg *domain.MessageRecord) (string, error) {
	if msg.RecipientSessionID != "" {
		return msg.RecipientSessionID, nil
	}
	if msg.RecipientProfileID == "" {
		return "", nil
	}
	p, err := part.Profiles.GetByID(ctx, msg.RecipientProfileID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("recipient profile lookup: %w", err)
	}
	return p.SessionID, nil
}

// conversation picks the aggregation scope: the explicit conversation id
// when the message carries one, else the sorted session pair.
func (h *MessageHandler) conversation(msg *domain.MessageRecord, senderSession, recipientSession string) string {
	if msg.ConversationID != "" {
		return msg.ConversationID
	}
	pair := []string{senderSession, recipientSession}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

// preview truncates content to previewLimit runes for the notification body.
func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLimit]) + "…"
}
