// Package solana provides a minimal JSON-RPC 2.0 client for the Solana RPC
// endpoint: a health gate used at startup and token-supply lookups backing the
// market-cap fallback.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Client is an HTTP JSON-RPC 2.0 client for a Solana node.
type Client struct {
	endpoint   string
	httpClient *http.Client
	requestID  atomic.Uint64
}

// NewClient creates a Client for the given RPC endpoint with a 30s timeout.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Health checks the node's getHealth endpoint. Any result other than "ok" is
// an error.
func (c *Client) Health(ctx context.Context) error {
	var result string
	if err := c.call(ctx, "getHealth", nil, &result); err != nil {
		return fmt.Errorf("solana: health: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("solana: health: node reported %q", result)
	}
	return nil
}

// TokenSupply returns the UI-amount circulating supply of the given mint.
func (c *Client) TokenSupply(ctx context.Context, tokenAddress string) (float64, error) {
	var result struct {
		Value struct {
			Amount   string `json:"amount"`
			Decimals int    `json:"decimals"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenSupply", []any{tokenAddress}, &result); err != nil {
		return 0, fmt.Errorf("solana: token supply %s: %w", tokenAddress, err)
	}

	raw, err := strconv.ParseFloat(result.Value.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("solana: token supply %s: parse amount %q: %w", tokenAddress, result.Value.Amount, err)
	}
	for i := 0; i < result.Value.Decimals; i++ {
		raw /= 10
	}
	return raw, nil
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
