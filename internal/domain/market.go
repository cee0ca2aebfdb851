package domain

import "context"

// TokenSnapshot is the current market view of a token. PriceChange24h is the
// trailing 24-hour price change in percent; providers that cannot supply it
// leave it at zero.
type TokenSnapshot struct {
	TokenAddress   string
	PriceUSD       float64
	MarketCap      float64
	Liquidity      float64
	PriceChange24h float64
}

// MarketDataProvider fetches current market data for tokens and the native
// quote asset. Implementations are expected to enforce their own HTTP
// timeouts; callers treat every method as a blocking network call.
type MarketDataProvider interface {
	// TokenOverview returns the current snapshot for the given token address.
	TokenOverview(ctx context.Context, tokenAddress string) (TokenSnapshot, error)
	// QuotePrice returns the USD price of the native quote asset (SOL).
	QuotePrice(ctx context.Context) (float64, error)
}

// SnapshotCache caches token snapshots so hot paths do not hammer the
// market-data API. A miss is reported as ErrNotFound.
type SnapshotCache interface {
	Get(ctx context.Context, tokenAddress string) (TokenSnapshot, error)
	Set(ctx context.Context, snap TokenSnapshot) error
}
