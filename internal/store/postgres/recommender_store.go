package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// RecommenderStore implements domain.RecommenderStore using PostgreSQL.
type RecommenderStore struct {
	pool *pgxpool.Pool
}

// NewRecommenderStore creates a new RecommenderStore backed by the given pool.
func NewRecommenderStore(pool *pgxpool.Pool) *RecommenderStore {
	return &RecommenderStore{pool: pool}
}

// GetOrCreate returns the recommender for the platform identity, inserting it
// on first reference. The upsert is a single statement so concurrent callers
// converge on one row.
func (s *RecommenderStore) GetOrCreate(ctx context.Context, platform, platformID string) (domain.Recommender, error) {
	const query = `
		INSERT INTO recommenders (id, platform, platform_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (platform, platform_id)
			DO UPDATE SET platform_id = EXCLUDED.platform_id
		RETURNING id, platform, platform_id, username, created_at`

	row := s.pool.QueryRow(ctx, query, uuid.New().String(), platform, platformID)

	var r domain.Recommender
	if err := row.Scan(&r.ID, &r.Platform, &r.PlatformID, &r.Username, &r.CreatedAt); err != nil {
		return domain.Recommender{}, fmt.Errorf("postgres: get-or-create recommender %s/%s: %w", platform, platformID, err)
	}
	return r, nil
}

// GetByID retrieves a recommender by its internal id.
func (s *RecommenderStore) GetByID(ctx context.Context, id string) (domain.Recommender, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, platform, platform_id, username, created_at
		 FROM recommenders WHERE id = $1`, id)

	var r domain.Recommender
	if err := row.Scan(&r.ID, &r.Platform, &r.PlatformID, &r.Username, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Recommender{}, domain.ErrNotFound
		}
		return domain.Recommender{}, fmt.Errorf("postgres: get recommender %s: %w", id, err)
	}
	return r, nil
}

// InsertRecommendation appends a token recommendation.
func (s *RecommenderStore) InsertRecommendation(ctx context.Context, rec domain.Recommendation) error {
	const query = `
		INSERT INTO token_recommendations (
			id, recommender_id, token_address,
			initial_market_cap, initial_liquidity, initial_price
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.RecommenderID, rec.TokenAddress,
		rec.InitialMarketCap, rec.InitialLiquidity, rec.InitialPrice,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert recommendation %s: %w", rec.ID, err)
	}
	return nil
}

// RecommendationsForToken returns recommendations for the token, newest first.
func (s *RecommenderStore) RecommendationsForToken(ctx context.Context, tokenAddress string) ([]domain.Recommendation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, recommender_id, token_address,
			initial_market_cap, initial_liquidity, initial_price, created_at
		 FROM token_recommendations
		 WHERE token_address = $1
		 ORDER BY created_at DESC`, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("postgres: recommendations for %s: %w", tokenAddress, err)
	}
	defer rows.Close()

	var recs []domain.Recommendation
	for rows.Next() {
		var r domain.Recommendation
		if err := rows.Scan(
			&r.ID, &r.RecommenderID, &r.TokenAddress,
			&r.InitialMarketCap, &r.InitialLiquidity, &r.InitialPrice, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan recommendation: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Compile-time interface check.
var _ domain.RecommenderStore = (*RecommenderStore)(nil)
