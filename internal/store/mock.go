package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gatherly/pushpipe/internal/domain"
)

// MockPartition is a hand-written, in-memory Partition used in unit tests.
// No mock-generation library needed.
type MockPartition struct {
	Jobs     *MockJobsRepository
	Tokens   *MockTokensRepository
	Locks    *MockLocksRepository
	Profiles *MockProfilesRepository
	Events   *MockEventsRepository
	Routes   *MockRoutesRepository
}

func NewMockPartition() *MockPartition {
	return &MockPartition{
		Jobs:     NewMockJobsRepository(),
		Tokens:   NewMockTokensRepository(),
		Locks:    NewMockLocksRepository(),
		Profiles: NewMockProfilesRepository(),
		Events:   NewMockEventsRepository(),
		Routes:   NewMockRoutesRepository(),
	}
}

// Bundle exposes the mock as the store.Partition used by production code.
func (m *MockPartition) Bundle() *Partition {
	return &Partition{
		Jobs:     m.Jobs,
		Tokens:   m.Tokens,
		Locks:    m.Locks,
		Profiles: m.Profiles,
		Events:   m.Events,
		Routes:   m.Routes,
	}
}

// ---- jobs ----

type MockJobsRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.NotificationJob

	// Optional error overrides, set in tests to simulate failure paths.
	InsertErr error
}

func NewMockJobsRepository() *MockJobsRepository {
	return &MockJobsRepository{jobs: make(map[string]*domain.NotificationJob)}
}

func (m *MockJobsRepository) Insert(_ context.Context, j *domain.NotificationJob) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *j
	m.jobs[j.ID] = &clone
	return nil
}

func (m *MockJobsRepository) HasRecentDuplicate(_ context.Context, j *domain.NotificationJob, window time.Duration) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().Add(-window)
	for _, existing := range m.jobs {
		if existing.AggregationKey == j.AggregationKey &&
			existing.SubjectSessionID == j.SubjectSessionID &&
			existing.EventID == j.EventID &&
			existing.Type == j.Type &&
			existing.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockJobsRepository) OldestQueued(_ context.Context, limit int) ([]*domain.NotificationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var queued []*domain.NotificationJob
	for _, j := range m.jobs {
		if j.Status == domain.StatusQueued {
			clone := *j
			queued = append(queued, &clone)
		}
	}
	sort.Slice(queued, func(i, k int) bool {
		return queued[i].CreatedAt.Before(queued[k].CreatedAt)
	})
	if len(queued) > limit {
		queued = queued[:limit]
	}
	return queued, nil
}

func (m *MockJobsRepository) GetByID(_ context.Context, id string) (*domain.NotificationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *j
	return &clone, nil
}

func (m *MockJobsRepository) List(_ context.Context, f domain.JobFilter) ([]*domain.NotificationJob, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.NotificationJob
	for _, j := range m.jobs {
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		if f.Type != nil && j.Type != *f.Type {
			continue
		}
		clone := *j
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, k int) bool {
		return all[i].CreatedAt.After(all[k].CreatedAt)
	})
	total := len(all)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *MockJobsRepository) MarkSent(_ context.Context, id string) error {
	return m.update(id, func(j *domain.NotificationJob) {
		j.Status = domain.StatusSent
		j.LastError = nil
	})
}

func (m *MockJobsRepository) MarkSkipped(_ context.Context, id, reason string) error {
	return m.update(id, func(j *domain.NotificationJob) {
		j.Status = domain.StatusSkipped
		j.StatusReason = &reason
	})
}

func (m *MockJobsRepository) MarkPermanentFailure(_ context.Context, id, reason, lastError string) error {
	return m.update(id, func(j *domain.NotificationJob) {
		j.Status = domain.StatusPermanentFailure
		j.StatusReason = &reason
		if lastError != "" {
			j.LastError = &lastError
		}
	})
}

func (m *MockJobsRepository) RecordFailure(_ context.Context, id, errMsg string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	j.Attempts++
	j.LastError = &errMsg
	j.UpdatedAt = time.Now().UTC()
	return j.Attempts, nil
}

func (m *MockJobsRepository) update(id string, fn func(*domain.NotificationJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(j)
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// All returns a snapshot of every stored job, for test assertions.
func (m *MockJobsRepository) All() []*domain.NotificationJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.NotificationJob
	for _, j := range m.jobs {
		clone := *j
		out = append(out, &clone)
	}
	return out
}

// ---- tokens ----

type MockTokensRepository struct {
	mu     sync.RWMutex
	tokens map[string]*domain.PushToken // by id
}

func NewMockTokensRepository() *MockTokensRepository {
	return &MockTokensRepository{tokens: make(map[string]*domain.PushToken)}
}

func (m *MockTokensRepository) Register(_ context.Context, t *domain.PushToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	reason := "superseded"
	for _, existing := range m.tokens {
		if existing.SessionID == t.SessionID && existing.Platform == t.Platform && existing.IsActive {
			existing.IsActive = false
			existing.RevokedAt = &now
			existing.RevokedReason = &reason
			existing.UpdatedAt = now
		}
	}
	clone := *t
	clone.IsActive = true
	m.tokens[t.ID] = &clone
	return nil
}

func (m *MockTokensRepository) ActiveBySession(_ context.Context, sessionID string) ([]*domain.PushToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PushToken
	for _, t := range m.tokens {
		if t.SessionID == sessionID && t.IsActive {
			clone := *t
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out, nil
}

func (m *MockTokensRepository) Revoke(_ context.Context, token, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Token == token && t.IsActive {
			now := time.Now().UTC()
			t.IsActive = false
			t.RevokedAt = &now
			t.RevokedReason = &reason
			t.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

// Get returns a stored token by id, for test assertions.
func (m *MockTokensRepository) Get(id string) (*domain.PushToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, false
	}
	clone := *t
	return &clone, true
}

// ---- locks ----

type MockLocksRepository struct {
	mu    sync.Mutex
	locks map[string]*domain.IdempotencyLock

	ClaimErr error
}

func NewMockLocksRepository() *MockLocksRepository {
	return &MockLocksRepository{locks: make(map[string]*domain.IdempotencyLock)}
}

func (m *MockLocksRepository) Claim(_ context.Context, key, processedBy string, ttl time.Duration) (bool, error) {
	if m.ClaimErr != nil {
		return false, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := m.locks[key]; ok {
		if ttl <= 0 || now.Sub(existing.CreatedAt) < ttl {
			return false, nil
		}
	}
	m.locks[key] = &domain.IdempotencyLock{
		Key: key, Processed: true, ProcessedBy: processedBy, CreatedAt: now,
	}
	return true, nil
}

// ---- profiles ----

type MockProfilesRepository struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
	mutes    map[[3]string]bool // event, muter, muted

	DisplayNameErr error
}

func NewMockProfilesRepository() *MockProfilesRepository {
	return &MockProfilesRepository{
		profiles: make(map[string]*domain.Profile),
		mutes:    make(map[[3]string]bool),
	}
}

// Seed adds a profile for test setup.
func (m *MockProfilesRepository) Seed(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = &p
}

// SeedMute records an active mute for test setup.
func (m *MockProfilesRepository) SeedMute(eventID, muterSession, mutedSession string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutes[[3]string{eventID, muterSession, mutedSession}] = true
}

func (m *MockProfilesRepository) GetByID(_ context.Context, profileID string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MockProfilesRepository) DisplayNameBySession(_ context.Context, eventID, sessionID string) (string, error) {
	if m.DisplayNameErr != nil {
		return "", m.DisplayNameErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if p.EventID == eventID && p.SessionID == sessionID {
			return p.DisplayName, nil
		}
	}
	return "", domain.ErrNotFound
}

func (m *MockProfilesRepository) IsMuted(_ context.Context, eventID, muterSession, mutedSession string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mutes[[3]string{eventID, muterSession, mutedSession}], nil
}

// ---- events ----

type MockEventsRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.Event
}

func NewMockEventsRepository() *MockEventsRepository {
	return &MockEventsRepository{events: make(map[string]*domain.Event)}
}

func (m *MockEventsRepository) Insert(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.events[e.ID] = &clone
	return nil
}

func (m *MockEventsRepository) Exists(_ context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.events[eventID]
	return ok, nil
}

// ---- routes ----

type MockRoutesRepository struct {
	mu     sync.RWMutex
	routes map[string]domain.PartitionID
}

func NewMockRoutesRepository() *MockRoutesRepository {
	return &MockRoutesRepository{routes: make(map[string]domain.PartitionID)}
}

func (m *MockRoutesRepository) Put(_ context.Context, eventID string, partition domain.PartitionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[eventID]; !ok {
		m.routes[eventID] = partition
	}
	return nil
}

func (m *MockRoutesRepository) Lookup(_ context.Context, eventID string) (domain.PartitionID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.routes[eventID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}
