package provider

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a hand-written in-memory Provider for unit tests.
// It records every batch and mints sequential ticket ids.
type MockProvider struct {
	mu      sync.Mutex
	batches [][]PushMessage
	seq     int

	// SendErr, when set, fails every SendBatch call.
	SendErr error
	// FailTokens lists token values that get an error ticket instead of ok.
	FailTokens map[string]bool
	// Receipts is returned verbatim from GetReceipts.
	Receipts    map[string]Receipt
	ReceiptsErr error
}

func NewMockProvider() *MockProvider {
	return &MockProvider{Receipts: make(map[string]Receipt)}
}

func (m *MockProvider) SendBatch(_ context.Context, messages []PushMessage) ([]Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}

	batch := make([]PushMessage, len(messages))
	copy(batch, messages)
	m.batches = append(m.batches, batch)

	tickets := make([]Ticket, len(messages))
	for i, msg := range messages {
		if m.FailTokens[msg.To] {
			tickets[i] = Ticket{Status: StatusError, Message: "failed", Details: TicketDetails{Error: ErrDeviceNotRegistered}}
			continue
		}
		m.seq++
		tickets[i] = Ticket{ID: fmt.Sprintf("ticket-%d", m.seq), Status: StatusOK}
	}
	return tickets, nil
}

func (m *MockProvider) GetReceipts(_ context.Context, ticketIDs []string) (map[string]Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReceiptsErr != nil {
		return nil, m.ReceiptsErr
	}
	out := make(map[string]Receipt, len(ticketIDs))
	for _, id := range ticketIDs {
		if r, ok := m.Receipts[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

// Batches returns a snapshot of every batch sent so far.
func (m *MockProvider) Batches() [][]PushMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]PushMessage, len(m.batches))
	copy(out, m.batches)
	return out
}

// Sent returns the total number of messages across all batches.
func (m *MockProvider) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

var _ Provider = (*MockProvider)(nil)
