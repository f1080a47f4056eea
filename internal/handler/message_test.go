package handler_test

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/handler"
	"github.com/gatherly/pushpipe/internal/store"
)

func (f *fixture) messageHandler() *handler.MessageHandler {
	reg := store.NewRegistry("us")
	reg.Add("us", f.mock.Bundle())
	return handler.NewMessageHandler(reg, f.lock, f.queue, zap.NewNop())
}

func messageChange(t *testing.T, msg domain.MessageRecord) domain.ChangeEvent {
	t.Helper()
	return domain.ChangeEvent{
		Collection: domain.CollectionMessages,
		Kind:       domain.ChangeCreate,
		Partition:  "us",
		After:      raw(t, msg),
	}
}

func TestMessageHandler_EnqueuesForRecipient(t *testing.T) {
	f := newFixture()
	h := f.messageHandler()

	change := messageChange(t, domain.MessageRecord{
		ID:                 "m1",
		EventID:            "evt1",
		ConversationID:     "conv-7",
		SenderSessionID:    "s-A",
		SenderName:         "Alex",
		RecipientSessionID: "s-B",
		Content:            "see you by the bar?",
	})
	if err := h.Handle(context.Background(), change); err != nil {
		t.Fatal(err)
	}

	jobs := f.mock.Jobs.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	j := jobs[0]
	if j.Type != domain.JobTypeMessage || j.SubjectSessionID != "s-B" || j.ActorSessionID != "s-A" {
		t.Fatalf("wrong job identity: %+v", j)
	}
	if j.AggregationKey != "message:evt1:conv-7" {
		t.Fatalf("wrong aggregation key: %q", j.AggregationKey)
	}
	if j.Payload.Title != "Alex" || j.Payload.Body != "see you by the bar?" {
		t.Fatalf("wrong payload: %+v", j.Payload)
	}
	if j.Payload.Data["messageId"] != "m1" || j.Payload.Data["conversationId"] != "conv-7" {
		t.Fatalf("wrong payload data: %+v", j.Payload.Data)
	}
}

func TestMessageHandler_MutedSenderEnqueuesNothing(t *testing.T) {
	f := newFixture()
	f.mock.Profiles.SeedMute("evt1", "s-B", "s-A")
	h := f.messageHandler()

	change := messageChange(t, domain.MessageRecord{
		ID:                 "m1",
		EventID:            "evt1",
		SenderSessionID:    "s-A",
		SenderName:         "Alex",
		RecipientSessionID: "s-B",
		Content:            "hello?",
	})
	if err := h.Handle(context.Background(), change); err != nil {
		t.Fatal(err)
	}
	if got := len(f.mock.Jobs.All()); got != 0 {
		t.Fatalf("expected no jobs for muted sender, got %d", got)
	}
}

func TestMessageHandler_RedundantDeliveriesProduceOneJob(t *testing.T) {
	f := newFixture()
	h := f.messageHandler()
	ctx := context.Background()

	change := messageChange(t, domain.MessageRecord{
		ID:                 "m1",
		EventID:            "evt1",
		SenderSessionID:    "s-A",
		RecipientSessionID: "s-B",
		Content:            "hi",
	})
	for i := 0; i < 3; i++ {
		if err := h.Handle(ctx, change); err != nil {
			t.Fatalf("delivery %d errored: %v", i, err)
		}
	}
	if got := len(f.mock.Jobs.All()); got != 1 {
		t.Fatalf("expected exactly 1 job, got %d", got)
	}
}

func TestMessageHandler_SelfMessageIsSkipped(t *testing.T) {
	f := newFixture()
	h := f.messageHandler()

	change := messageChange(t, domain.MessageRecord{
		ID:                 "m1",
		EventID:            "evt1",
		SenderSessionID:    "s-A",
		RecipientSessionID: "s-A",
		Content:            "note to self",
	})
	if err := h.Handle(context.Background(), change); err != nil {
		t.Fatal(err)
	}
	if got := len(f.mock.Jobs.All()); got != 0 {
		t.Fatalf("expected no jobs for self message, got %d", got)
	}
}

func TestMessageHandler_ResolvesPartiesThroughProfiles(t *testing.T) {
	f := newFixture()
	f.mock.Profiles.Seed(domain.Profile{ID: "p-A", EventID: "evt1", SessionID: "s-A", DisplayName: "Alex"})
	f.mock.Profiles.Seed(domain.Profile{ID: "p-B", EventID: "evt1", SessionID: "s-B", DisplayName: "Blake"})
	h := f.messageHandler()

	change := messageChange(t, domain.MessageRecord{
		ID:                 "m1",
		EventID:            "evt1",
		SenderProfileID:    "p-A",
		RecipientProfileID: "p-B",
		Content:            "hi",
	})
	if err := h.Handle(context.Background(), change); err != nil {
		t.Fatal(err)
	}

	jobs := f.mock.Jobs.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].SubjectSessionID != "s-B" || jobs[0].ActorSessionID != "s-A" {
		t.Fatalf("profile resolution failed: %+v", jobs[0])
	}
	if jobs[0].Payload.Title != "Alex" {
		t.Fatalf("expected sender name from profile, got %q", jobs[0].Payload.Title)
	}
}

func TestMessageHandler_UnresolvableRecipientIsSkipped(t *testing.T) {
	f := newFixture()
	h := f.messageHandler()

	change := messageChange(t, domain.MessageRecord{
		ID:                 "m1",
		EventID:            "evt1",
		SenderSessionID:    "s-A",
		RecipientProfileID: "p-missing",
		Content:            "hi",
	})
	if err := h.Handle(context.Background(), change); err != nil {
		t.Fatal(err)
	}
	if got := len(f.mock.Jobs.All()); got != 0 {
		t.Fatalf("expected no jobs when the recipient cannot be resolved, got %d", got)
	}
}

func TestMessageHandler_MissingConversationFallsBackToSessionPair(t *testing.T) {
	f := newFixture()
	h := f.messageHandler()

	change := messageChange(t, domain.MessageRecord{
		ID:                 "m1",
		EventID:            "evt1",
		SenderSessionID:    "s-B",
		RecipientSessionID: "s-A",
		Content:            "hi",
	})
	if err := h.Handle(context.Background(), change); err != nil {
		t.Fatal(err)
	}
	jobs := f.mock.Jobs.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].AggregationKey != "message:evt1:s-A:s-B" {
		t.Fatalf("expected sorted session pair key, got %q", jobs[0].AggregationKey)
	}
}

func TestMessageHandler_LongContentIsTruncated(t *testing.T) {
	f := newFixture()
	h := f.messageHandler()

	change := messageChange(t, domain.MessageRecord{
		ID:                 "m1",
		EventID:            "evt1",
		SenderSessionID:    "s-A",
		SenderName:         "Alex",
		RecipientSessionID: "s-B",
		Content:            strings.Repeat("héllo ", 40),
	})
	if err := h.Handle(context.Background(), change); err != nil {
		t.Fatal(err)
	}
	jobs := f.mock.Jobs.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	body := []rune(jobs[0].Payload.Body)
	if len(body) != 101 || body[100] != '…' {
		t.Fatalf("expected 100 runes plus ellipsis, got %d runes ending %q",
			len(body), string(body[len(body)-1]))
	}
}
