// Package remote talks to a standalone load-generation engine service over
// HTTP. The service accepts {script, options} and answers with the raw keyed
// metrics document.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/report"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// no client timeout: the run context bounds the call
		httpClient: &http.Client{},
	}
}

type runRequest struct {
	Script  string            `json:"script"`
	Options domain.RunOptions `json:"options"`
}

func (c *Client) Run(ctx context.Context, script string, opts domain.RunOptions) (report.RawSummary, error) {
	body, err := json.Marshal(runRequest{Script: script, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("remote engine: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote engine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote engine: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote engine: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Message != "" {
			return nil, fmt.Errorf("remote engine: %d: %s", resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("remote engine: %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	doc, err := report.ParseSummary(data)
	if err != nil {
		return nil, fmt.Errorf("remote engine: %w", err)
	}
	return doc, nil
}
