package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/pushpipe/internal/domain"
)

// JobsRepository persists notification jobs within one partition.
// The pgx implementation is in pg_jobs.go; tests use the in-memory
// implementation in mock.go.
type JobsRepository interface {
	Insert(ctx context.Context, j *domain.NotificationJob) error
	// HasRecentDuplicate reports whether a job with the same
	// (aggregation_key, subject, event, type) identity was created within
	// the given window.
	HasRecentDuplicate(ctx context.Context, j *domain.NotificationJob, window time.Duration) (bool, error)
	// OldestQueued returns up to limit queued jobs in ascending creation order.
	OldestQueued(ctx context.Context, limit int) ([]*domain.NotificationJob, error)
	GetByID(ctx context.Context, id string) (*domain.NotificationJob, error)
	List(ctx context.Context, f domain.JobFilter) ([]*domain.NotificationJob, int, error)
	MarkSent(ctx context.Context, id string) error
	MarkSkipped(ctx context.Context, id, reason string) error
	MarkPermanentFailure(ctx context.Context, id, reason, lastError string) error
	// RecordFailure increments the attempt counter and stores the error,
	// leaving the job queued. Returns the new attempt count. The increment
	// is a single statement, so concurrent drains stay consistent per job.
	RecordFailure(ctx context.Context, id, errMsg string) (int, error)
}

// TokensRepository persists push tokens within one partition.
type TokensRepository interface {
	// Register inserts a new active token, deactivating any older active
	// token for the same (session, platform).
	Register(ctx context.Context, t *domain.PushToken) error
	ActiveBySession(ctx context.Context, sessionID string) ([]*domain.PushToken, error)
	// Revoke deactivates the token by its opaque value. Returns true if a
	// row was actually flipped (used to stop the cross-partition scan).
	Revoke(ctx context.Context, token, reason string) (bool, error)
}

// LocksRepository is the write-once idempotency claim store.
type LocksRepository interface {
	// Claim atomically records the key as processed. Exactly one concurrent
	// caller observes true. A row older than ttl may be re-claimed; ttl <= 0
	// keeps locks forever.
	Claim(ctx context.Context, key, processedBy string, ttl time.Duration) (bool, error)
}

// ProfilesRepository resolves event participants within one partition.
type ProfilesRepository interface {
	GetByID(ctx context.Context, profileID string) (*domain.Profile, error)
	DisplayNameBySession(ctx context.Context, eventID, sessionID string) (string, error)
	// IsMuted reports whether muter has an active mute against muted,
	// scoped to the event.
	IsMuted(ctx context.Context, eventID, muterSession, mutedSession string) (bool, error)
}

// EventsRepository holds the event rows this pipeline needs for routing.
type EventsRepository interface {
	Insert(ctx context.Context, e *domain.Event) error
	Exists(ctx context.Context, eventID string) (bool, error)
}

// RoutesRepository is the event-to-partition routing index. It is only
// authoritative in the default partition; other partitions carry the table
// but are never consulted.
type RoutesRepository interface {
	Put(ctx context.Context, eventID string, partition domain.PartitionID) error
	// Lookup returns domain.ErrNotFound on an index miss.
	Lookup(ctx context.Context, eventID string) (domain.PartitionID, error)
}

// Partition bundles every repository for one regional data partition.
type Partition struct {
	Jobs     JobsRepository
	Tokens   TokensRepository
	Locks    LocksRepository
	Profiles ProfilesRepository
	Events   EventsRepository
	Routes   RoutesRepository
}

// NewPgPartition wires all pgx-backed repositories over one pool.
func NewPgPartition(pool *pgxpool.Pool) *Partition {
	return &Partition{
		Jobs:     NewPgJobsRepository(pool),
		Tokens:   NewPgTokensRepository(pool),
		Locks:    NewPgLocksRepository(pool),
		Profiles: NewPgProfilesRepository(pool),
		Events:   NewPgEventsRepository(pool),
		Routes:   NewPgRoutesRepository(pool),
	}
}

// Registry holds every configured partition in probe order.
type Registry struct {
	order []domain.PartitionID
	parts map[domain.PartitionID]*Partition
	def   domain.PartitionID
}

func NewRegistry(def domain.PartitionID) *Registry {
	return &Registry{parts: make(map[domain.PartitionID]*Partition), def: def}
}

// Add registers a partition. Call order defines the probe order.
func (r *Registry) Add(id domain.PartitionID, p *Partition) {
	if _, ok := r.parts[id]; !ok {
		r.order = append(r.order, id)
	}
	r.parts[id] = p
}

func (r *Registry) Get(id domain.PartitionID) (*Partition, bool) {
	p, ok := r.parts[id]
	return p, ok
}

// Order returns partition ids in probe order.
func (r *Registry) Order() []domain.PartitionID {
	return r.order
}

func (r *Registry) DefaultID() domain.PartitionID {
	return r.def
}

// Default returns the default partition's store bundle.
func (r *Registry) Default() *Partition {
	return r.parts[r.def]
}
