package queue_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/dispatch"
	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/provider"
	"github.com/gatherly/pushpipe/internal/queue"
	"github.com/gatherly/pushpipe/internal/store"
)

type fixture struct {
	svc  *queue.Service
	mock *store.MockPartition
	prov *provider.MockProvider
}

func newFixture() *fixture {
	mock := store.NewMockPartition()
	reg := store.NewRegistry("us")
	reg.Add("us", mock.Bundle())

	prov := provider.NewMockProvider()
	d := dispatch.New(prov, nil, 100, 0, 1000, zap.NewNop())

	svc := queue.NewService(reg, d, queue.Options{
		DedupWindow: 2 * time.Minute,
		StaleAfter:  24 * time.Hour,
		MaxAttempts: 5,
		DrainBatch:  10,
	}, queue.Hooks{}, zap.NewNop())

	return &fixture{svc: svc, mock: mock, prov: prov}
}

func matchJob() *domain.NotificationJob {
	return &domain.NotificationJob{
		Type:             domain.JobTypeMatch,
		SubjectSessionID: "s-A",
		ActorSessionID:   "s-B",
		EventID:          "evt1",
		AggregationKey:   "match:evt1:s-A",
		Payload:          domain.Payload{Title: "New match!", Body: "You and Sam liked each other"},
	}
}

func (f *fixture) registerToken(t *testing.T, sessionID string) {
	t.Helper()
	err := f.mock.Tokens.Register(context.Background(), &domain.PushToken{
		ID: "tok-" + sessionID, SessionID: sessionID,
		Platform: domain.PlatformIOS, Token: "push-" + sessionID,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestService_Enqueue_DedupWithinWindow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.svc.Enqueue(ctx, "us", matchJob()); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := f.svc.Enqueue(ctx, "us", matchJob()); err != nil {
		t.Fatalf("duplicate enqueue must not error: %v", err)
	}

	if got := len(f.mock.Jobs.All()); got != 1 {
		t.Fatalf("expected exactly one stored job, got %d", got)
	}
}

func TestService_Enqueue_DifferentIdentityNotDeduped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_ = f.svc.Enqueue(ctx, "us", matchJob())

	other := matchJob()
	other.SubjectSessionID = "s-B"
	other.AggregationKey = "match:evt1:s-B"
	_ = f.svc.Enqueue(ctx, "us", other)

	if got := len(f.mock.Jobs.All()); got != 2 {
		t.Fatalf("expected two stored jobs, got %d", got)
	}
}

func TestService_Enqueue_WakesDrainer(t *testing.T) {
	f := newFixture()

	_ = f.svc.Enqueue(context.Background(), "us", matchJob())

	select {
	case <-f.svc.Wake("us"):
	default:
		t.Fatal("expected a wake signal after enqueue")
	}
}

func TestService_Drain_Sends(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerToken(t, "s-A")

	job := matchJob()
	_ = f.svc.Enqueue(ctx, "us", job)

	if err := f.svc.Drain(ctx, "us"); err != nil {
		t.Fatalf("drain: %v", err)
	}

	stored, _ := f.mock.Jobs.GetByID(ctx, job.ID)
	if stored.Status != domain.StatusSent {
		t.Fatalf("expected sent, got %s", stored.Status)
	}
	if f.prov.Sent() != 1 {
		t.Fatalf("expected 1 provider message, got %d", f.prov.Sent())
	}
}

func TestService_Drain_StaleJobExpiresWithoutSend(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerToken(t, "s-A")

	job := matchJob()
	job.ID = "stale-1"
	job.Status = domain.StatusQueued
	job.CreatedAt = time.Now().Add(-25 * time.Hour)
	job.UpdatedAt = job.CreatedAt
	_ = f.mock.Jobs.Insert(ctx, job)

	_ = f.svc.Drain(ctx, "us")

	stored, _ := f.mock.Jobs.GetByID(ctx, "stale-1")
	if stored.Status != domain.StatusPermanentFailure {
		t.Fatalf("expected permanent-failure, got %s", stored.Status)
	}
	if stored.StatusReason == nil || *stored.StatusReason != "expired" {
		t.Fatalf("expected reason expired, got %v", stored.StatusReason)
	}
	if f.prov.Sent() != 0 {
		t.Fatal("stale job must never reach the provider")
	}
}

func TestService_Drain_SkipPush(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerToken(t, "s-A")

	job := matchJob()
	job.SkipPush = true
	_ = f.svc.Enqueue(ctx, "us", job)
	_ = f.svc.Drain(ctx, "us")

	stored, _ := f.mock.Jobs.GetByID(ctx, job.ID)
	if stored.Status != domain.StatusSkipped {
		t.Fatalf("expected skipped, got %s", stored.Status)
	}
	if f.prov.Sent() != 0 {
		t.Fatal("skip_push job must never reach the provider")
	}
}

func TestService_Drain_NoTokens(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	job := matchJob()
	_ = f.svc.Enqueue(ctx, "us", job)
	_ = f.svc.Drain(ctx, "us")

	stored, _ := f.mock.Jobs.GetByID(ctx, job.ID)
	if stored.Status != domain.StatusPermanentFailure {
		t.Fatalf("expected permanent-failure, got %s", stored.Status)
	}
	if stored.StatusReason == nil || *stored.StatusReason != "no tokens" {
		t.Fatalf("expected reason 'no tokens', got %v", stored.StatusReason)
	}
}

func TestService_Drain_TransientFailureStaysQueued(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerToken(t, "s-A")
	f.prov.SendErr = context.DeadlineExceeded

	job := matchJob()
	_ = f.svc.Enqueue(ctx, "us", job)
	_ = f.svc.Drain(ctx, "us")

	stored, _ := f.mock.Jobs.GetByID(ctx, job.ID)
	if stored.Status != domain.StatusQueued {
		t.Fatalf("expected job to stay queued, got %s", stored.Status)
	}
	if stored.Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", stored.Attempts)
	}
	if stored.LastError == nil {
		t.Fatal("expected the error recorded on the job")
	}
}

func TestService_Drain_AttemptCeilingIsTerminal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerToken(t, "s-A")
	f.prov.SendErr = context.DeadlineExceeded

	job := matchJob()
	_ = f.svc.Enqueue(ctx, "us", job)

	for i := 0; i < 5; i++ {
		_ = f.svc.Drain(ctx, "us")
	}

	stored, _ := f.mock.Jobs.GetByID(ctx, job.ID)
	if stored.Status != domain.StatusPermanentFailure {
		t.Fatalf("expected permanent-failure after 5 attempts, got %s (attempts=%d)", stored.Status, stored.Attempts)
	}
	if stored.Attempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", stored.Attempts)
	}

	// A terminal job is never picked up again.
	f.prov.SendErr = nil
	_ = f.svc.Drain(ctx, "us")
	stored, _ = f.mock.Jobs.GetByID(ctx, job.ID)
	if stored.Attempts != 5 || stored.Status != domain.StatusPermanentFailure {
		t.Fatal("terminal job was retried")
	}
}

func TestService_Enqueue_UnknownPartition(t *testing.T) {
	f := newFixture()
	if err := f.svc.Enqueue(context.Background(), "mars", matchJob()); err != domain.ErrUnknownPartition {
		t.Fatalf("expected ErrUnknownPartition, got %v", err)
	}
}
