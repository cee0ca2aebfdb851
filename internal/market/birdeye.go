// Package market implements the market-data adapter backing sell-economics
// computation: current price, market cap, liquidity, and trailing 24h price
// change per token, plus the native SOL quote price.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// SupplyLookup resolves the on-chain circulating supply of a token. It backs
// the market-cap fallback when the data provider has no market cap for a
// freshly launched token.
type SupplyLookup interface {
	TokenSupply(ctx context.Context, tokenAddress string) (float64, error)
}

// BirdeyeClient fetches token overviews and the SOL price from a
// Birdeye-compatible HTTP API, authenticated via the X-API-KEY header.
type BirdeyeClient struct {
	baseURL    string
	apiKey     string
	quoteAsset string
	supply     SupplyLookup
	httpClient *http.Client
}

// NewBirdeyeClient creates a market-data client for the given API base URL.
// quoteAsset is the mint whose USD price anchors quote-denominated values; an
// empty string selects wrapped SOL. supply may be nil, in which case the
// market-cap fallback is disabled.
func NewBirdeyeClient(baseURL, apiKey, quoteAsset string, supply SupplyLookup) *BirdeyeClient {
	if quoteAsset == "" {
		quoteAsset = domain.WrappedSOL
	}
	return &BirdeyeClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		quoteAsset: quoteAsset,
		supply:     supply,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// tokenOverviewResponse mirrors the provider's token_overview envelope. The
// 24h change is a pointer: the field is absent for tokens too young to have a
// trailing window, and absence must read as zero, not as a crash.
type tokenOverviewResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Price          float64  `json:"price"`
		MarketCap      float64  `json:"mc"`
		Liquidity      float64  `json:"liquidity"`
		PriceChange24h *float64 `json:"priceChange24hPercent"`
	} `json:"data"`
}

// TokenOverview returns the current market snapshot for the token.
func (c *BirdeyeClient) TokenOverview(ctx context.Context, tokenAddress string) (domain.TokenSnapshot, error) {
	endpoint := fmt.Sprintf("%s/defi/token_overview?address=%s", c.baseURL, url.QueryEscape(tokenAddress))

	var resp tokenOverviewResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return domain.TokenSnapshot{}, fmt.Errorf("market: token overview %s: %w", tokenAddress, err)
	}
	if !resp.Success {
		return domain.TokenSnapshot{}, fmt.Errorf("market: token overview %s: provider reported failure", tokenAddress)
	}

	snap := domain.TokenSnapshot{
		TokenAddress: tokenAddress,
		PriceUSD:     resp.Data.Price,
		MarketCap:    resp.Data.MarketCap,
		Liquidity:    resp.Data.Liquidity,
	}
	if resp.Data.PriceChange24h != nil {
		snap.PriceChange24h = *resp.Data.PriceChange24h
	}

	// Fresh launches often have no market cap yet; derive one from the
	// on-chain supply when we can.
	if snap.MarketCap == 0 && snap.PriceUSD > 0 && c.supply != nil {
		supply, err := c.supply.TokenSupply(ctx, tokenAddress)
		if err == nil && supply > 0 {
			snap.MarketCap = snap.PriceUSD * supply
		}
	}

	return snap, nil
}

// QuotePrice returns the USD price of the configured quote asset.
func (c *BirdeyeClient) QuotePrice(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/defi/price?address=%s", c.baseURL, url.QueryEscape(c.quoteAsset))

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Value float64 `json:"value"`
		} `json:"data"`
	}
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return 0, fmt.Errorf("market: quote price: %w", err)
	}
	if !resp.Success {
		return 0, fmt.Errorf("market: quote price: provider reported failure")
	}
	return resp.Data.Value, nil
}

func (c *BirdeyeClient) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketDataProvider = (*BirdeyeClient)(nil)
