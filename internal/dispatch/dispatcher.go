// Package dispatch turns a notification plus a recipient token list into
// provider requests: chunking, payload shaping, pacing, and handoff of
// ticket ids to the receipt reconciler.
package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/provider"
)

// Notification is the dispatcher's input: the queue drain builds one from a
// job, the direct-send path builds one from the request.
type Notification struct {
	Type             domain.JobType
	Title            string
	Body             string
	Data             map[string]string
	AggregationKey   string
	SubjectSessionID string
	ActorSessionID   string
	EventID          string
}

// TicketRef ties a provider ticket back to the token it was issued for, so
// a dead-device receipt can revoke the right token.
type TicketRef struct {
	TicketID string
	Token    string
}

// ReceiptScheduler receives ticket references for a delayed receipt check.
type ReceiptScheduler interface {
	Schedule(refs []TicketRef)
}

// ChunkResult is the outcome of one provider batch call.
type ChunkResult struct {
	Tokens  int
	Tickets []provider.Ticket
	Err     error
}

// OK reports whether the chunk's transport succeeded and every ticket in it
// was accepted.
func (c ChunkResult) OK() bool {
	if c.Err != nil {
		return false
	}
	for _, t := range c.Tickets {
		if t.Status != provider.StatusOK {
			return false
		}
	}
	return true
}

// Result aggregates all chunks of one dispatch.
type Result struct {
	Sent   int
	Chunks []ChunkResult
}

// AllOK reports whether every chunk succeeded. The queue marks a job sent
// only when this holds.
func (r *Result) AllOK() bool {
	for _, c := range r.Chunks {
		if !c.OK() {
			return false
		}
	}
	return true
}

// FirstError returns the first chunk-level or ticket-level failure, or nil
// when every chunk succeeded. The queue records this on the job for the
// next drain.
func (r *Result) FirstError() error {
	for _, c := range r.Chunks {
		if c.Err != nil {
			return c.Err
		}
		for _, t := range c.Tickets {
			if t.Status != provider.StatusOK {
				return fmt.Errorf("provider ticket error: %s (%s)", t.Details.Error, t.Message)
			}
		}
	}
	return nil
}

// Dispatcher batches tokens and sends provider requests.
type Dispatcher struct {
	prov       provider.Provider
	limiter    *rate.Limiter
	receipts   ReceiptScheduler
	chunkSize  int
	chunkDelay time.Duration
	logger     *zap.Logger
}

// New constructs a dispatcher. receipts may be nil (no reconciliation).
// ratePerSec caps provider calls; burst equals the rate so no extra burst
// capacity accumulates beyond the per-second maximum.
func New(
	prov provider.Provider,
	receipts ReceiptScheduler,
	chunkSize int,
	chunkDelay time.Duration,
	ratePerSec int,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		prov:       prov,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		receipts:   receipts,
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
		logger:     logger,
	}
}

// Dispatch sends the notification to every token, one provider request per
// chunk of at most chunkSize. A short delay between chunks after the first
// avoids bursting the provider. Chunk failures are captured per chunk, not
// returned: the only error here is context cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification, tokens []*domain.PushToken) (*Result, error) {
	result := &Result{Sent: len(tokens)}

	for i := 0; i < len(tokens); i += d.chunkSize {
		end := i + d.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[i:end]

		if i > 0 {
			select {
			case <-time.After(d.chunkDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return result, err
		}

		messages := make([]provider.PushMessage, len(chunk))
		for k, tok := range chunk {
			messages[k] = d.buildMessage(n, tok)
		}

		tickets, err := d.prov.SendBatch(ctx, messages)
		cr := ChunkResult{Tokens: len(chunk), Tickets: tickets, Err: err}
		result.Chunks = append(result.Chunks, cr)

		if err != nil {
			d.logger.Warn("push chunk failed",
				zap.Int("chunk", i/d.chunkSize),
				zap.Int("tokens", len(chunk)),
				zap.Error(err))
			continue
		}

		d.scheduleReceipts(chunk, tickets)
	}

	return result, nil
}

// scheduleReceipts hands ok tickets with ids to the reconciler, preserving
// the ticket-to-token mapping (tickets come back in message order).
func (d *Dispatcher) scheduleReceipts(chunk []*domain.PushToken, tickets []provider.Ticket) {
	if d.receipts == nil {
		return
	}
	var refs []TicketRef
	for k, t := range tickets {
		if t.ID != "" && k < len(chunk) {
			refs = append(refs, TicketRef{TicketID: t.ID, Token: chunk[k].Token})
		}
	}
	if len(refs) > 0 {
		d.receipts.Schedule(refs)
	}
}

// buildMessage shapes one provider message for one token: the collapse and
// channel ids, a freshly generated per-send notification id plus timestamp
// for client-side dedup, and platform-specific delivery hints.
func (d *Dispatcher) buildMessage(n Notification, tok *domain.PushToken) provider.PushMessage {
	data := make(map[string]string, len(n.Data)+4)
	for k, v := range n.Data {
		data[k] = v
	}
	data["type"] = string(n.Type)
	data["notificationId"] = uuid.New().String()
	data["sentAt"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	if n.EventID != "" {
		data["eventId"] = n.EventID
	}

	msg := provider.PushMessage{
		To:         tok.Token,
		Title:      n.Title,
		Body:       n.Body,
		Data:       data,
		Sound:      "default",
		ChannelID:  ChannelID(n.Type),
		CollapseID: CollapseKey(n),
		Priority:   "high",
	}

	switch tok.Platform {
	case domain.PlatformIOS:
		badge := 1
		msg.Badge = &badge
		msg.MutableContent = true
	case domain.PlatformAndroid:
		msg.Vibrate = []int{0, 250, 250, 250}
	}

	return msg
}
