// Package backendsync reports finalized trade results to the analytics
// backend. Delivery is best-effort: a fixed number of attempts with a fixed
// delay, then a logged give-up. It never raises into the coordinator's main
// path.
package backendsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

const (
	// DefaultRetries is the total number of delivery attempts.
	DefaultRetries = 3
	// DefaultRetryDelay is the fixed pause between attempts.
	DefaultRetryDelay = 2000 * time.Millisecond
)

// TradeData is the per-trade slice of the report payload.
type TradeData struct {
	BuyAmount       float64 `json:"buy_amount"`
	SellAmount      float64 `json:"sell_amount"`
	SellPrice       float64 `json:"sell_price"`
	SellValueUSD    float64 `json:"sell_value_usd"`
	ProfitUSD       float64 `json:"profit_usd"`
	ProfitPercent   float64 `json:"profit_percent"`
	MarketCapChange float64 `json:"market_cap_change"`
	LiquidityChange float64 `json:"liquidity_change"`
	RapidDump       bool    `json:"rapid_dump"`
	TxHash          string  `json:"tx_hash"`
}

// Report is the full trade-performance report payload.
type Report struct {
	TokenAddress  string    `json:"tokenAddress"`
	TradeData     TradeData `json:"tradeData"`
	RecommenderID string    `json:"recommenderId"`
	Username      string    `json:"username"`
	IsSimulation  bool      `json:"isSimulation"`
	BalanceLeft   float64   `json:"balanceLeft"`
}

// Reporter delivers trade-performance reports with a fixed retry policy.
type Reporter struct {
	baseURL    string
	token      string
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewReporter creates a Reporter for the given backend URL and bearer token.
// Non-positive retries or delay select the defaults.
func NewReporter(baseURL, token string, retries int, retryDelay time.Duration, logger *slog.Logger) *Reporter {
	if retries <= 0 {
		retries = DefaultRetries
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Reporter{
		baseURL:    baseURL,
		token:      token,
		retries:    retries,
		retryDelay: retryDelay,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With(slog.String("component", "backendsync")),
	}
}

// ReportTrade posts the report, retrying up to the configured attempt count
// with a fixed delay between attempts. After exhausting attempts it logs the
// final failure and returns domain.ErrSyncExhausted; callers treat delivery
// as fire-and-forget.
func (r *Reporter) ReportTrade(ctx context.Context, report Report) error {
	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		lastErr = r.send(ctx, report)
		if lastErr == nil {
			r.logger.InfoContext(ctx, "trade report delivered",
				slog.String("token", report.TokenAddress),
				slog.Int("attempt", attempt),
			)
			return nil
		}

		r.logger.WarnContext(ctx, "trade report attempt failed",
			slog.String("token", report.TokenAddress),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.retries),
			slog.String("error", lastErr.Error()),
		)

		if attempt == r.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}

	r.logger.ErrorContext(ctx, "trade report abandoned after retries",
		slog.String("token", report.TokenAddress),
		slog.Int("attempts", r.retries),
		slog.String("error", lastErr.Error()),
	)
	return fmt.Errorf("%w: %v", domain.ErrSyncExhausted, lastErr)
}

func (r *Reporter) send(ctx context.Context, report Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/api/updaters/updateTradePerformance", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
