// Package breaker implements a process-local suppression window for the
// synchronous direct-send path. It is explicitly not a correctness
// mechanism: the two structural domain events (match, message) are
// protected by the transactional idempotency lock, and horizontally scaled
// instances each keep an independent breaker.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/gatherly/pushpipe/internal/domain"
)

type entry struct {
	at      time.Time
	content string
}

// Breaker suppresses duplicate-content sends within a short window.
// Instance-owned: inject one per process, never a package singleton, so
// tests stay isolated.
type Breaker struct {
	mu      sync.Mutex
	entries map[string]entry
	window  time.Duration
	maxSize int
	now     func() time.Time
}

func New(window time.Duration, maxSize int) *Breaker {
	return &Breaker{
		entries: make(map[string]entry),
		window:  window,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Allow decides whether a send attempt may proceed, then records the
// attempt regardless. Recording after the check means the window slides on
// the most recent attempt, not the original.
//
// Inside the window: match sends are always suppressed (pure time-based);
// message sends are suppressed only when the content is byte-identical to
// the stored content; fresh content from the same source gets through.
func (b *Breaker) Allow(typ domain.JobType, subject, sourceID, content string) bool {
	key := b.key(typ, subject, sourceID)
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	allowed := true
	if prev, ok := b.entries[key]; ok && now.Sub(prev.at) < b.window {
		switch typ {
		case domain.JobTypeMessage:
			allowed = prev.content != content
		default:
			allowed = false
		}
	}

	b.entries[key] = entry{at: now, content: content}

	if len(b.entries) > b.maxSize {
		b.evictLocked(now)
	}
	return allowed
}

// key scopes message suppression per source so two different senders never
// shadow each other.
func (b *Breaker) key(typ domain.JobType, subject, sourceID string) string {
	if typ == domain.JobTypeMessage && sourceID != "" {
		return fmt.Sprintf("%s|%s|%s", subject, typ, sourceID)
	}
	return fmt.Sprintf("%s|%s", subject, typ)
}

// evictLocked drops entries older than twice the window. Opportunistic:
// only runs when the map outgrows maxSize.
func (b *Breaker) evictLocked(now time.Time) {
	cutoff := now.Add(-2 * b.window)
	for k, e := range b.entries {
		if e.at.Before(cutoff) {
			delete(b.entries, k)
		}
	}
}

// Len reports the number of live entries.
func (b *Breaker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
