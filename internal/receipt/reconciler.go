// Package receipt reconciles push delivery receipts after a delay and
// revokes tokens the provider reports as dead. Everything here is
// best-effort cleanup: failures are logged and never propagated.
package receipt

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/dispatch"
	"github.com/gatherly/pushpipe/internal/provider"
	"github.com/gatherly/pushpipe/internal/store"
)

const revokedReason = "device not registered"

type check struct {
	due  time.Time
	refs []dispatch.TicketRef
}

// Reconciler polls delivery receipts a fixed delay after each successful
// chunk and deactivates tokens whose receipts report the terminal
// device-not-registered condition.
type Reconciler struct {
	prov    provider.Provider
	stores  *store.Registry
	delay   time.Duration
	pending chan check
	logger  *zap.Logger

	// OnRevoked is an optional metric callback invoked per revoked token.
	OnRevoked func()
}

func New(prov provider.Provider, stores *store.Registry, delay time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		prov:    prov,
		stores:  stores,
		delay:   delay,
		pending: make(chan check, 1024),
		logger:  logger,
	}
}

// Schedule queues a delayed receipt pass for one chunk's tickets.
// Non-blocking: when the buffer is full the check is dropped with a log
// line, consistent with this path being strictly best-effort.
func (r *Reconciler) Schedule(refs []dispatch.TicketRef) {
	select {
	case r.pending <- check{due: time.Now().Add(r.delay), refs: refs}:
	default:
		r.logger.Warn("receipt check dropped: buffer full", zap.Int("tickets", len(refs)))
	}
}

// Run consumes scheduled checks until ctx is cancelled. Checks are
// processed in schedule order; since every check carries the same delay,
// waiting on the head never starves a later one.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("receipt reconciler started", zap.Duration("delay", r.delay))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("receipt reconciler stopping")
			return
		case c := <-r.pending:
			if wait := time.Until(c.due); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return
				}
			}
			r.reconcile(ctx, c.refs)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, refs []dispatch.TicketRef) {
	ids := make([]string, len(refs))
	byTicket := make(map[string]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.TicketID
		byTicket[ref.TicketID] = ref.Token
	}

	receipts, err := r.prov.GetReceipts(ctx, ids)
	if err != nil {
		r.logger.Warn("receipt fetch failed", zap.Int("tickets", len(ids)), zap.Error(err))
		return
	}

	for ticketID, rec := range receipts {
		if rec.Status != provider.StatusError || rec.Details.Error != provider.ErrDeviceNotRegistered {
			continue
		}
		token, ok := byTicket[ticketID]
		if !ok {
			continue
		}
		r.revoke(ctx, token)
	}
}

// revoke scans partitions sequentially and stops at the first one that
// actually held the token.
func (r *Reconciler) revoke(ctx context.Context, token string) {
	for _, id := range r.stores.Order() {
		part, _ := r.stores.Get(id)
		revoked, err := part.Tokens.Revoke(ctx, token, revokedReason)
		if err != nil {
			r.logger.Warn("token revocation failed",
				zap.String("partition", string(id)), zap.Error(err))
			continue
		}
		if revoked {
			r.logger.Info("revoked dead push token", zap.String("partition", string(id)))
			if r.OnRevoked != nil {
				r.OnRevoked()
			}
			return
		}
	}
}
