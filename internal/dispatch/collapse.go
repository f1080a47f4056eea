package dispatch

import (
	"fmt"
	"sort"
	"time"

	"github.com/gatherly/pushpipe/internal/domain"
)

// ChannelID maps a notification type to the client delivery-channel
// identifier embedded in every payload, so clients can route sound and
// vibration per category.
func ChannelID(typ domain.JobType) string {
	switch typ {
	case domain.JobTypeMessage:
		return "messages"
	case domain.JobTypeMatch:
		return "matches"
	default:
		return "default"
	}
}

// CollapseKey resolves the provider collapse identifier for a notification.
// Resolution order: explicit aggregation key; for match, the sorted
// participant pair; for message, the conversation id, else the sorted
// sender/recipient pair, else a minute-bucket time fallback; otherwise the
// payload type, else "default".
func CollapseKey(n Notification) string {
	if n.AggregationKey != "" {
		return n.AggregationKey
	}

	switch n.Type {
	case domain.JobTypeMatch:
		if n.SubjectSessionID != "" && n.ActorSessionID != "" {
			return "match:" + sortedPair(n.SubjectSessionID, n.ActorSessionID)
		}
	case domain.JobTypeMessage:
		if cid := n.Data["conversationId"]; cid != "" {
			return "message:" + cid
		}
		if n.SubjectSessionID != "" && n.ActorSessionID != "" {
			return "message:" + sortedPair(n.SubjectSessionID, n.ActorSessionID)
		}
		return fmt.Sprintf("message:t%d", time.Now().Unix()/60)
	}

	if n.Type != "" {
		return string(n.Type)
	}
	return "default"
}

func sortedPair(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}
