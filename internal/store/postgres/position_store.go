package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `token_address, balance, initial_market_cap,
	COALESCE(recommender_id::text, ''), is_simulation, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.TokenAddress, &p.Balance, &p.InitialMarketCap,
		&p.RecommenderID, &p.IsSimulation, &p.UpdatedAt,
	)
	return p, err
}

// Get retrieves a single position by token address.
func (s *PositionStore) Get(ctx context.Context, tokenAddress string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE token_address = $1`,
		tokenAddress)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", tokenAddress, err)
	}
	return p, nil
}

// Upsert inserts or replaces a position.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			token_address, balance, initial_market_cap, recommender_id,
			is_simulation, updated_at
		) VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, NOW())
		ON CONFLICT (token_address) DO UPDATE SET
			balance            = EXCLUDED.balance,
			initial_market_cap = EXCLUDED.initial_market_cap,
			recommender_id     = EXCLUDED.recommender_id,
			is_simulation      = EXCLUDED.is_simulation,
			updated_at         = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.TokenAddress, p.Balance, p.InitialMarketCap, p.RecommenderID, p.IsSimulation,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", p.TokenAddress, err)
	}
	return nil
}

// ListWithBalance returns all positions whose balance is strictly positive.
func (s *PositionStore) ListWithBalance(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE balance > 0
		 ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions with balance: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpdateBalance sets the balance for a position. It returns domain.ErrNotFound
// when no position exists for the token address.
func (s *PositionStore) UpdateBalance(ctx context.Context, tokenAddress string, newBalance float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions SET balance = $2, updated_at = NOW() WHERE token_address = $1`,
		tokenAddress, newBalance)
	if err != nil {
		return fmt.Errorf("postgres: update balance %s: %w", tokenAddress, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
