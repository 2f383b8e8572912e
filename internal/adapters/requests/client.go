// Package requests fetches read-only request snapshots from the
// request-definition store. The core never writes back through this boundary.
package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Snapshot(ctx context.Context, requestID string) (domain.RequestSnapshot, bool, error) {
	url := fmt.Sprintf("%s/api/requests/%s/snapshot", c.baseURL, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.RequestSnapshot{}, false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RequestSnapshot{}, false, fmt.Errorf("request store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.RequestSnapshot{}, false, nil
	}
	if resp.StatusCode >= 400 {
		return domain.RequestSnapshot{}, false, fmt.Errorf("request store: unexpected status %d", resp.StatusCode)
	}
	var snap domain.RequestSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return domain.RequestSnapshot{}, false, fmt.Errorf("request store: decode snapshot: %w", err)
	}
	return snap, true, nil
}
