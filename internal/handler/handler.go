// Package handler turns raw document change notifications into queued
// notification jobs. Handlers are invoked with at-least-once semantics and
// heavy fan-out (region x trigger kind), so every side effect sits behind
// the idempotency lock. Benign conditions return nil early; unexpected
// errors propagate to the trigger surface so platform-level retry and
// alerting apply.
package handler

import (
	"context"
	"fmt"

	"github.com/gatherly/pushpipe/internal/domain"
)

// ChangeHandler processes one document change for one collection.
type ChangeHandler interface {
	Handle(ctx context.Context, change domain.ChangeEvent) error
}

// Mux routes a change event to the handler registered for its collection.
// One logical subscription per collection; the partition rides on the
// change itself.
type Mux struct {
	handlers map[domain.Collection]ChangeHandler
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[domain.Collection]ChangeHandler)}
}

func (m *Mux) Register(c domain.Collection, h ChangeHandler) {
	m.handlers[c] = h
}

func (m *Mux) Handle(ctx context.Context, change domain.ChangeEvent) error {
	h, ok := m.handlers[change.Collection]
	if !ok {
		return fmt.Errorf("collection %q: %w", change.Collection, domain.ErrUnknownCollection)
	}
	return h.Handle(ctx, change)
}

// fallbackName is used when a display-name lookup fails; name resolution is
// enrichment and must never abort the enqueue flow.
const fallbackName = "Someone"
