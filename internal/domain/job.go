package domain

import "time"

// PartitionID identifies one regional data partition. Every domain
// collection (events, profiles, jobs, tokens, locks) exists independently
// in each partition, and an event lives in exactly one partition for its
// entire lifetime.
type PartitionID string

// JobType classifies what caused a notification.
type JobType string

const (
	JobTypeMatch   JobType = "match"
	JobTypeMessage JobType = "message"
	JobTypeGeneric JobType = "generic"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobTypeMatch, JobTypeMessage, JobTypeGeneric:
		return true
	}
	return false
}

// JobStatus tracks the lifecycle of a notification job.
// queued is the only non-terminal state: a job either goes out, is skipped,
// or exhausts its attempts.
type JobStatus string

const (
	StatusQueued           JobStatus = "queued"
	StatusSent             JobStatus = "sent"
	StatusSkipped          JobStatus = "skipped"
	StatusPermanentFailure JobStatus = "permanent-failure"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusSent || s == StatusSkipped || s == StatusPermanentFailure
}

// Payload is the user-visible content of a push notification.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// NotificationJob is a durable unit of work on the notification queue.
// Created by a domain event handler (or a scheduled producer); mutated only
// by the queue drain; terminal once status leaves queued.
type NotificationJob struct {
	ID               string            `json:"id"`
	Type             JobType           `json:"type"`
	SubjectSessionID string            `json:"subject_session_id"`
	ActorSessionID   string            `json:"actor_session_id,omitempty"`
	EventID          string            `json:"event_id"`
	AggregationKey   string            `json:"aggregation_key"`
	Payload          Payload           `json:"payload"`
	Attempts         int               `json:"attempts"`
	Status           JobStatus         `json:"status"`
	SkipPush         bool              `json:"skip_push"`
	LastError        *string           `json:"last_error,omitempty"`
	StatusReason     *string           `json:"status_reason,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// DedupIdentity returns the fields a job is deduplicated on. Two jobs with
// the same identity may not both be enqueued within the dedup window.
func (j *NotificationJob) DedupIdentity() (aggregationKey, subject, eventID string, typ JobType) {
	return j.AggregationKey, j.SubjectSessionID, j.EventID, j.Type
}

// JobFilter holds query parameters for paginated job listing.
type JobFilter struct {
	Status *JobStatus
	Type   *JobType
	Page   int
	Limit  int
}

// IdempotencyLock is the write-once claim record. Once a row exists with
// processed=true, every later claim for the same key loses.
type IdempotencyLock struct {
	Key         string    `json:"key"`
	Processed   bool      `json:"processed"`
	ProcessedBy string    `json:"processed_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event is the minimal slice of the social-event record this pipeline
// needs: identity for routing and country for partition placement.
type Event struct {
	ID        string    `json:"id"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile maps an event participant's profile to a session and display name.
type Profile struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name"`
}
