package market

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// CachedProvider wraps a MarketDataProvider with a read-through snapshot
// cache. Cache failures degrade to direct provider calls; they are logged and
// never surfaced.
type CachedProvider struct {
	provider domain.MarketDataProvider
	cache    domain.SnapshotCache
	logger   *slog.Logger
}

// NewCachedProvider creates a CachedProvider around the given provider.
func NewCachedProvider(provider domain.MarketDataProvider, cache domain.SnapshotCache, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		logger:   logger.With(slog.String("component", "market_cache")),
	}
}

// TokenOverview serves the snapshot from cache when fresh, falling back to the
// underlying provider and repopulating the cache on a miss.
func (p *CachedProvider) TokenOverview(ctx context.Context, tokenAddress string) (domain.TokenSnapshot, error) {
	snap, err := p.cache.Get(ctx, tokenAddress)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		p.logger.WarnContext(ctx, "snapshot cache read failed",
			slog.String("token", tokenAddress),
			slog.String("error", err.Error()),
		)
	}

	snap, err = p.provider.TokenOverview(ctx, tokenAddress)
	if err != nil {
		return domain.TokenSnapshot{}, err
	}

	if cacheErr := p.cache.Set(ctx, snap); cacheErr != nil {
		p.logger.WarnContext(ctx, "snapshot cache write failed",
			slog.String("token", tokenAddress),
			slog.String("error", cacheErr.Error()),
		)
	}
	return snap, nil
}

// QuotePrice delegates to the underlying provider. The quote asset is hit on
// every sell anyway and the provider call is cheap.
func (p *CachedProvider) QuotePrice(ctx context.Context) (float64, error) {
	return p.provider.QuotePrice(ctx)
}

// Compile-time interface check.
var _ domain.MarketDataProvider = (*CachedProvider)(nil)
