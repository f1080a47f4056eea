package domain

import "encoding/json"

// Collection names the domain collections whose changes feed the pipeline.
type Collection string

const (
	CollectionLikes    Collection = "likes"
	CollectionMessages Collection = "messages"
)

// ChangeKind is the kind of document change the trigger runtime observed.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is one document change delivered by the trigger runtime.
// Delivery is at-least-once and fans out across region and trigger kind, so
// the same logical change arrives many times; handlers must claim the
// idempotency lock before producing side effects.
//
// The partition is explicit: there is one logical subscription per
// (collection, kind) rather than one statically bound handler per region.
type ChangeEvent struct {
	Collection Collection      `json:"collection"`
	Kind       ChangeKind      `json:"kind"`
	Partition  PartitionID     `json:"partition"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// LikeRecord is the two-party relationship document in the likes collection.
// is_mutual flipping false/absent -> true is the rising edge that forms a
// match.
type LikeRecord struct {
	EventID         string `json:"event_id"`
	SessionID       string `json:"session_id"`
	TargetSessionID string `json:"target_session_id"`
	IsMutual        bool   `json:"is_mutual"`
}

// MessageRecord is a chat message document. Sender/recipient session ids
// are denormalized when present; handlers fall back to profile lookups.
type MessageRecord struct {
	ID                 string `json:"id"`
	EventID            string `json:"event_id"`
	ConversationID     string `json:"conversation_id,omitempty"`
	SenderProfileID    string `json:"sender_profile_id"`
	SenderSessionID    string `json:"sender_session_id,omitempty"`
	SenderName         string `json:"sender_name,omitempty"`
	RecipientProfileID string `json:"recipient_profile_id"`
	RecipientSessionID string `json:"recipient_session_id,omitempty"`
	Content            string `json:"content"`
}
