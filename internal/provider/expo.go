package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ExpoProvider talks to an Expo-compatible push gateway over HTTP.
// The base URL is injected from config so tests can point to a local mock.
type ExpoProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewExpoProvider(baseURL string, timeout time.Duration) *ExpoProvider {
	return &ExpoProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendBatchResponse struct {
	Data []Ticket `json:"data"`
}

// SendBatch posts the chunk to /send. Transport status 200 signals
// chunk-level success; the body carries one ticket per message.
func (p *ExpoProvider) SendBatch(ctx context.Context, messages []PushMessage) ([]Ticket, error) {
	var resp sendBatchResponse
	if err := p.post(ctx, p.baseURL+"/send", messages, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(messages) {
		return nil, fmt.Errorf("provider returned %d tickets for %d messages", len(resp.Data), len(messages))
	}
	return resp.Data, nil
}

type getReceiptsRequest struct {
	IDs []string `json:"ids"`
}

type getReceiptsResponse struct {
	Data map[string]Receipt `json:"data"`
}

// GetReceipts posts {ids: [...]} to /getReceipts.
func (p *ExpoProvider) GetReceipts(ctx context.Context, ticketIDs []string) (map[string]Receipt, error) {
	var resp getReceiptsResponse
	if err := p.post(ctx, p.baseURL+"/getReceipts", getReceiptsRequest{IDs: ticketIDs}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (p *ExpoProvider) post(ctx context.Context, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected provider status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// compile-time check that ExpoProvider implements Provider
var _ Provider = (*ExpoProvider)(nil)
