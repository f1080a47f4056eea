package breaker

import (
	"fmt"
	"testing"
	"time"

	"github.com/gatherly/pushpipe/internal/domain"
)

// newWithClock returns a breaker whose clock the test controls.
func newWithClock(window time.Duration, maxSize int) (*Breaker, *time.Time) {
	b := New(window, maxSize)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_MatchAlwaysSuppressedInWindow(t *testing.T) {
	b, now := newWithClock(10*time.Second, 1000)

	if !b.Allow(domain.JobTypeMatch, "s-A", "", "You matched!") {
		t.Fatal("first send must pass")
	}
	// Different content makes no difference for match type.
	if b.Allow(domain.JobTypeMatch, "s-A", "", "completely different") {
		t.Fatal("match resend inside window must be suppressed")
	}

	*now = now.Add(11 * time.Second)
	if !b.Allow(domain.JobTypeMatch, "s-A", "", "You matched!") {
		t.Fatal("send after window must pass")
	}
}

func TestBreaker_MessageContentSensitive(t *testing.T) {
	b, _ := newWithClock(10*time.Second, 1000)

	if !b.Allow(domain.JobTypeMessage, "s-B", "s-A", "hello") {
		t.Fatal("first send must pass")
	}
	if b.Allow(domain.JobTypeMessage, "s-B", "s-A", "hello") {
		t.Fatal("identical content inside window must be suppressed")
	}
	if !b.Allow(domain.JobTypeMessage, "s-B", "s-A", "hello again") {
		t.Fatal("different content from the same source must pass")
	}
}

func TestBreaker_MessageSourcesIndependent(t *testing.T) {
	b, _ := newWithClock(10*time.Second, 1000)

	_ = b.Allow(domain.JobTypeMessage, "s-B", "s-A", "hello")
	if !b.Allow(domain.JobTypeMessage, "s-B", "s-C", "hello") {
		t.Fatal("same content from a different source must pass")
	}
}

func TestBreaker_WindowSlidesOnLatestAttempt(t *testing.T) {
	b, now := newWithClock(10*time.Second, 1000)

	_ = b.Allow(domain.JobTypeMatch, "s-A", "", "x")

	// A suppressed attempt at t+6s re-arms the window: t+12s is still
	// within 10s of the most recent attempt.
	*now = now.Add(6 * time.Second)
	_ = b.Allow(domain.JobTypeMatch, "s-A", "", "x")

	*now = now.Add(6 * time.Second)
	if b.Allow(domain.JobTypeMatch, "s-A", "", "x") {
		t.Fatal("window must slide on the most recent attempt")
	}
}

func TestBreaker_EvictionAboveCap(t *testing.T) {
	b, now := newWithClock(10*time.Second, 10)

	for i := 0; i < 10; i++ {
		_ = b.Allow(domain.JobTypeMatch, fmt.Sprintf("old-%d", i), "", "x")
	}

	// Everything above is now older than 2x the window; the next insert
	// crosses the cap and triggers the sweep.
	*now = now.Add(25 * time.Second)
	_ = b.Allow(domain.JobTypeMatch, "fresh", "", "x")

	if got := b.Len(); got != 1 {
		t.Fatalf("expected stale entries evicted, have %d", got)
	}
}
