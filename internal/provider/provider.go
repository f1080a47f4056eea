package provider

import "context"

// PushMessage is one provider message addressed to a single token.
// Platform-specific delivery hints ride along: MutableContent/Badge for
// iOS, ChannelID/Vibrate for Android. The provider ignores hints that do
// not apply to the token's platform.
type PushMessage struct {
	To             string            `json:"to"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Data           map[string]string `json:"data,omitempty"`
	Sound          string            `json:"sound,omitempty"`
	ChannelID      string            `json:"channelId,omitempty"`
	CollapseID     string            `json:"collapseId,omitempty"`
	Badge          *int              `json:"badge,omitempty"`
	MutableContent bool              `json:"mutableContent,omitempty"`
	Vibrate        []int             `json:"vibrate,omitempty"`
	Priority       string            `json:"priority,omitempty"`
}

// Ticket is the provider's per-message acknowledgement. A ticket id is a
// handle for a later receipt lookup, not a delivery confirmation.
type Ticket struct {
	ID      string        `json:"id,omitempty"`
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details TicketDetails `json:"details,omitempty"`
}

type TicketDetails struct {
	Error string `json:"error,omitempty"`
}

// Receipt is the delayed delivery outcome for one ticket.
type Receipt struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details TicketDetails `json:"details,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"

	// ErrDeviceNotRegistered is the terminal receipt condition: the device
	// token is dead and must be revoked.
	ErrDeviceNotRegistered = "DeviceNotRegistered"
)

// Provider abstracts the external push gateway. Mocking this interface in
// tests gives full control over provider behaviour without real HTTP calls.
type Provider interface {
	// SendBatch posts one chunk of up to the provider's batch limit and
	// returns one ticket per message, in message order.
	SendBatch(ctx context.Context, messages []PushMessage) ([]Ticket, error)
	// GetReceipts fetches delivery receipts for previously returned ticket
	// ids. Tickets without a receipt yet are simply absent from the map.
	GetReceipts(ctx context.Context, ticketIDs []string) (map[string]Receipt, error)
}
