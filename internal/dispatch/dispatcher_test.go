package dispatch_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/dispatch"
	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/provider"
)

type recordingScheduler struct {
	mu   sync.Mutex
	refs []dispatch.TicketRef
}

func (r *recordingScheduler) Schedule(refs []dispatch.TicketRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, refs...)
}

func tokens(n int) []*domain.PushToken {
	out := make([]*domain.PushToken, n)
	for i := range out {
		out[i] = &domain.PushToken{
			Token:    fmt.Sprintf("tok-%d", i),
			Platform: domain.PlatformAndroid,
			IsActive: true,
		}
	}
	return out
}

func newDispatcher(prov provider.Provider, sched dispatch.ReceiptScheduler) *dispatch.Dispatcher {
	return dispatch.New(prov, sched, 100, 0, 1000, zap.NewNop())
}

func TestDispatcher_ChunksAtBatchLimit(t *testing.T) {
	prov := provider.NewMockProvider()
	d := newDispatcher(prov, nil)

	result, err := d.Dispatch(context.Background(), dispatch.Notification{Type: domain.JobTypeMatch}, tokens(250))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 250 {
		t.Fatalf("expected sent=250, got %d", result.Sent)
	}

	batches := prov.Batches()
	if len(batches) != 3 {
		t.Fatalf("expected 3 chunks for 250 tokens, got %d", len(batches))
	}
	if len(batches[0]) != 100 || len(batches[1]) != 100 || len(batches[2]) != 50 {
		t.Fatalf("unexpected chunk sizes: %d/%d/%d", len(batches[0]), len(batches[1]), len(batches[2]))
	}
	if !result.AllOK() {
		t.Fatal("expected all chunks ok")
	}
}

func TestDispatcher_SchedulesReceiptsPerChunk(t *testing.T) {
	prov := provider.NewMockProvider()
	sched := &recordingScheduler{}
	d := newDispatcher(prov, sched)

	_, err := d.Dispatch(context.Background(), dispatch.Notification{Type: domain.JobTypeMessage}, tokens(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sched.refs) != 3 {
		t.Fatalf("expected 3 ticket refs, got %d", len(sched.refs))
	}
	for _, ref := range sched.refs {
		if ref.TicketID == "" || ref.Token == "" {
			t.Fatalf("incomplete ticket ref: %+v", ref)
		}
	}
}

func TestDispatcher_ChunkFailureCaptured(t *testing.T) {
	prov := provider.NewMockProvider()
	prov.SendErr = fmt.Errorf("gateway timeout")
	d := newDispatcher(prov, nil)

	result, err := d.Dispatch(context.Background(), dispatch.Notification{Type: domain.JobTypeMatch}, tokens(5))
	if err != nil {
		t.Fatalf("chunk errors must be captured, not returned: %v", err)
	}
	if result.AllOK() {
		t.Fatal("expected failed result")
	}
}

func TestDispatcher_ErrorTicketFailsChunk(t *testing.T) {
	prov := provider.NewMockProvider()
	prov.FailTokens = map[string]bool{"tok-1": true}
	d := newDispatcher(prov, nil)

	result, _ := d.Dispatch(context.Background(), dispatch.Notification{Type: domain.JobTypeMatch}, tokens(3))
	if result.AllOK() {
		t.Fatal("a chunk with an error ticket must not count as successful")
	}
}

func TestDispatcher_MessageShape(t *testing.T) {
	prov := provider.NewMockProvider()
	d := newDispatcher(prov, nil)

	ios := &domain.PushToken{Token: "ios-tok", Platform: domain.PlatformIOS}
	android := &domain.PushToken{Token: "android-tok", Platform: domain.PlatformAndroid}

	n := dispatch.Notification{
		Type:             domain.JobTypeMessage,
		Title:            "Riley",
		Body:             "hey there",
		AggregationKey:   "message:evt1:conv9",
		SubjectSessionID: "s-B",
		ActorSessionID:   "s-A",
		EventID:          "evt1",
	}
	_, _ = d.Dispatch(context.Background(), n, []*domain.PushToken{ios, android})

	batch := prov.Batches()[0]
	if len(batch) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(batch))
	}

	first, second := batch[0], batch[1]
	if first.ChannelID != "messages" {
		t.Fatalf("expected channel messages, got %s", first.ChannelID)
	}
	if first.CollapseID != "message:evt1:conv9" {
		t.Fatalf("explicit aggregation key must win, got %s", first.CollapseID)
	}
	if first.Data["notificationId"] == "" || first.Data["sentAt"] == "" {
		t.Fatal("per-send dedup fields missing")
	}
	if first.Data["notificationId"] == second.Data["notificationId"] {
		t.Fatal("notification ids must be fresh per message")
	}
	if first.Badge == nil || !first.MutableContent {
		t.Fatal("iOS hints missing")
	}
	if len(second.Vibrate) == 0 || second.Badge != nil {
		t.Fatal("Android hints missing or mixed with iOS hints")
	}
}

func TestCollapseKey_ResolutionOrder(t *testing.T) {
	tests := []struct {
		name string
		n    dispatch.Notification
		want string
	}{
		{
			"explicit key wins",
			dispatch.Notification{Type: domain.JobTypeMatch, AggregationKey: "explicit", SubjectSessionID: "b", ActorSessionID: "a"},
			"explicit",
		},
		{
			"match sorted pair",
			dispatch.Notification{Type: domain.JobTypeMatch, SubjectSessionID: "s-B", ActorSessionID: "s-A"},
			"match:s-A:s-B",
		},
		{
			"message conversation id",
			dispatch.Notification{Type: domain.JobTypeMessage, Data: map[string]string{"conversationId": "c7"}, SubjectSessionID: "b", ActorSessionID: "a"},
			"message:c7",
		},
		{
			"message sorted pair fallback",
			dispatch.Notification{Type: domain.JobTypeMessage, SubjectSessionID: "s-B", ActorSessionID: "s-A"},
			"message:s-A:s-B",
		},
		{
			"generic uses type",
			dispatch.Notification{Type: domain.JobTypeGeneric},
			"generic",
		},
		{
			"empty type uses default",
			dispatch.Notification{},
			"default",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := dispatch.CollapseKey(tc.n); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCollapseKey_MessageTimeFallback(t *testing.T) {
	got := dispatch.CollapseKey(dispatch.Notification{Type: domain.JobTypeMessage})
	if !strings.HasPrefix(got, "message:t") {
		t.Fatalf("expected time-bucket fallback, got %q", got)
	}
}

func TestChannelID(t *testing.T) {
	if dispatch.ChannelID(domain.JobTypeMessage) != "messages" ||
		dispatch.ChannelID(domain.JobTypeMatch) != "matches" ||
		dispatch.ChannelID(domain.JobTypeGeneric) != "default" {
		t.Fatal("channel mapping broken")
	}
}
