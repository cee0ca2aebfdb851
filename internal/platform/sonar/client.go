// Package sonar is a thin HTTP client for the remote execution backend that
// runs the actual sell simulation/order for a liquidating position. The
// client carries no retry policy; callers decide what a failure means.
package sonar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// StartRequest is the payload for starting a liquidation process.
type StartRequest struct {
	TokenAddress     string  `json:"tokenAddress"`
	Balance          float64 `json:"balance"`
	IsSimulation     bool    `json:"isSimulation"`
	InitialMarketCap float64 `json:"initial_mc"`
	RecommenderID    string  `json:"sell_recommender_id"`
}

// Client issues start/stop process requests, authenticated via a static
// x-api-key header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client for the given sonar backend URL. The HTTP client
// enforces a 30s timeout so a hung backend cannot block a worker forever.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// StartProcess asks the backend to begin liquidating the given position. The
// backend's response body is opaque to the coordinator and returned raw.
func (c *Client) StartProcess(ctx context.Context, req StartRequest) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.post(ctx, "/elizaos-sol/startProcess", req, &result); err != nil {
		return nil, fmt.Errorf("sonar: start process %s: %w", req.TokenAddress, err)
	}
	return result, nil
}

// StopProcess asks the backend to stop the liquidation process for the token.
func (c *Client) StopProcess(ctx context.Context, tokenAddress string) error {
	payload := map[string]string{"tokenAddress": tokenAddress}
	if err := c.post(ctx, "/elizaos-sol/stopProcess", payload, nil); err != nil {
		return fmt.Errorf("sonar: stop process %s: %w", tokenAddress, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out *json.RawMessage) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %w", domain.ErrRemoteBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: unexpected status %d: %s", domain.ErrRemoteBackend, resp.StatusCode, string(respBody))
	}

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		*out = json.RawMessage(raw)
	}
	return nil
}
