package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/ilertha/Solana-AI-agent-tool/internal/blob/s3"
	"github.com/ilertha/Solana-AI-agent-tool/internal/cache/redis"
	"github.com/ilertha/Solana-AI-agent-tool/internal/config"
	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
	"github.com/ilertha/Solana-AI-agent-tool/internal/inflight"
	"github.com/ilertha/Solana-AI-agent-tool/internal/market"
	"github.com/ilertha/Solana-AI-agent-tool/internal/notify"
	"github.com/ilertha/Solana-AI-agent-tool/internal/platform/backendsync"
	"github.com/ilertha/Solana-AI-agent-tool/internal/platform/solana"
	"github.com/ilertha/Solana-AI-agent-tool/internal/platform/sonar"
	"github.com/ilertha/Solana-AI-agent-tool/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	Positions    domain.PositionStore
	Trades       domain.TradeStore
	Recommenders domain.RecommenderStore
	Audit        domain.AuditStore

	// Queue and market data
	Queue  domain.TradeQueue
	Market domain.MarketDataProvider

	// Partner clients
	Sonar    *sonar.Client
	Reporter *backendsync.Reporter
	Solana   *solana.Client

	// Coordination
	Tracker *inflight.Tracker

	// Cold storage
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	Logger *slog.Logger
}

// needsArchive returns true for modes that run the cold-storage loop.
func needsArchive(mode string) bool {
	return mode == "archive" || mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Tracker: inflight.NewTracker(),
		Logger:  logger,
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Positions = postgres.NewPositionStore(pool)
	deps.Trades = postgres.NewTradeStore(pool)
	deps.Recommenders = postgres.NewRecommenderStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)

	// --- Redis: trade queue and snapshot cache ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	queue, err := redis.NewTradeQueue(ctx, redisClient,
		cfg.Redis.QueueStream, cfg.Redis.QueueGroup, cfg.Redis.QueueConsumer)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: trade queue: %w", err)
	}
	deps.Queue = queue

	// --- Solana RPC: startup health gate and supply fallback ---
	deps.Solana = solana.NewClient(cfg.Solana.RPCURL)
	if err := deps.Solana.Health(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: solana rpc: %w", err)
	}

	// --- Market data: Birdeye behind the Redis snapshot cache ---
	birdeye := market.NewBirdeyeClient(cfg.Market.BaseURL, cfg.Market.APIKey, cfg.Solana.QuoteAsset, deps.Solana)
	snapCache := redis.NewSnapshotCache(redisClient, cfg.Market.CacheTTL.Duration)
	deps.Market = market.NewCachedProvider(birdeye, snapCache, logger)

	// --- Partner clients ---
	deps.Sonar = sonar.NewClient(cfg.Sonar.BaseURL, cfg.Sonar.APIKey)
	deps.Reporter = backendsync.NewReporter(cfg.Backend.BaseURL, cfg.Backend.Token,
		cfg.Backend.Retries, cfg.Backend.RetryDelay.Duration, logger)

	// --- Cold storage (only for modes that archive) ---
	if needsArchive(cfg.Mode) && cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: archive storage: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Trades, deps.Audit, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
