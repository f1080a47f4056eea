// Package idempotency provides at-most-once execution for logical domain
// events. The trigger runtime delivers every document change at least once,
// multiplied by region and trigger kind, so the same logical event invokes
// a handler many times; the handler that wins the claim here is the only
// one allowed to produce side effects.
package idempotency

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/store"
)

// matchActionTag versions the match lock keyspace. Bumping it re-arms
// match notifications after a semantic change without colliding with old
// lock rows.
const matchActionTag = "match_v2"

// MatchKey derives the lock key for a mutual-like event. The session pair
// is sorted so the key is identical regardless of which side's document
// write fired the trigger.
func MatchKey(sessionA, sessionB, eventID string) string {
	pair := []string{sessionA, sessionB}
	sort.Strings(pair)
	return fmt.Sprintf("%s:%s:%s:%s", pair[0], pair[1], eventID, matchActionTag)
}

// MessageKey derives the lock key for a single message: the document's own
// id is already unique per logical event.
func MessageKey(messageID string) string {
	return messageID
}

// SeenMarkerKey is the secondary dedup guard for message enqueues. It
// shares the write-once claim store but lives in its own key namespace.
func SeenMarkerKey(eventID, messageID string) string {
	return fmt.Sprintf("message:%s:%s", eventID, messageID)
}

// Lock claims keys against a partition's write-once lock store. A claim is
// scoped to the partition holding the logical event; the same key in two
// partitions would be two different logical events.
type Lock struct {
	stores      *store.Registry
	processedBy string
	ttl         time.Duration
}

// NewLock builds the lock service. processedBy identifies this process
// instance in the lock rows. ttl <= 0 retains locks forever.
func NewLock(stores *store.Registry, processedBy string, ttl time.Duration) *Lock {
	return &Lock{stores: stores, processedBy: processedBy, ttl: ttl}
}

// Claim returns true iff this caller won the write-once claim for the key.
// Losing is expected concurrency, never an error: exactly one of the
// redundant deliveries observes true.
func (l *Lock) Claim(ctx context.Context, partition domain.PartitionID, key string) (bool, error) {
	part, ok := l.stores.Get(partition)
	if !ok {
		return false, domain.ErrUnknownPartition
	}
	acquired, err := part.Locks.Claim(ctx, key, l.processedBy, l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %q in %s: %w", key, partition, err)
	}
	return acquired, nil
}
