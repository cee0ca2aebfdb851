package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// defaultSnapshotTTL keeps cached market snapshots fresh enough for sell
// economics while absorbing scan bursts.
const defaultSnapshotTTL = 30 * time.Second

// SnapshotCache implements domain.SnapshotCache using Redis string keys with
// a short TTL.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client. A
// non-positive ttl selects the default.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

func snapshotKey(tokenAddress string) string {
	return "snapshot:" + tokenAddress
}

// Get returns the cached snapshot for the token, or domain.ErrNotFound on a
// miss.
func (c *SnapshotCache) Get(ctx context.Context, tokenAddress string) (domain.TokenSnapshot, error) {
	raw, err := c.rdb.Get(ctx, snapshotKey(tokenAddress)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.TokenSnapshot{}, domain.ErrNotFound
		}
		return domain.TokenSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", tokenAddress, err)
	}

	var snap domain.TokenSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.TokenSnapshot{}, fmt.Errorf("redis: decode snapshot %s: %w", tokenAddress, err)
	}
	return snap, nil
}

// Set stores the snapshot under its token address with the configured TTL.
func (c *SnapshotCache) Set(ctx context.Context, snap domain.TokenSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: encode snapshot %s: %w", snap.TokenAddress, err)
	}
	if err := c.rdb.Set(ctx, snapshotKey(snap.TokenAddress), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.TokenAddress, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
