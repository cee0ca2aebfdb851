package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Trade records are
// append-only; there is deliberately no update operation.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, token_address, COALESCE(recommender_id::text, ''), direction,
	executed_at, price, amount, value_usd, market_cap, liquidity,
	profit_usd, profit_percent, market_cap_change, liquidity_change,
	rapid_dump, is_simulation, tx_hash, buy_trade_id`

func scanTrade(row pgx.Row) (domain.TradeRecord, error) {
	var r domain.TradeRecord
	var direction string
	err := row.Scan(
		&r.ID, &r.TokenAddress, &r.RecommenderID, &direction,
		&r.ExecutedAt, &r.Price, &r.Amount, &r.ValueUSD, &r.MarketCap, &r.Liquidity,
		&r.ProfitUSD, &r.ProfitPercent, &r.MarketCapChange, &r.LiquidityChange,
		&r.RapidDump, &r.IsSimulation, &r.TxHash, &r.BuyTradeID,
	)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	r.Direction = domain.TradeDirection(direction)
	return r, nil
}

// Insert appends a new trade record.
func (s *TradeStore) Insert(ctx context.Context, r domain.TradeRecord) error {
	const query = `
		INSERT INTO trade_records (
			id, token_address, recommender_id, direction, executed_at,
			price, amount, value_usd, market_cap, liquidity,
			profit_usd, profit_percent, market_cap_change, liquidity_change,
			rapid_dump, is_simulation, tx_hash, buy_trade_id
		) VALUES (
			$1, $2, NULLIF($3, '')::uuid, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18
		)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.TokenAddress, r.RecommenderID, string(r.Direction), r.ExecutedAt,
		r.Price, r.Amount, r.ValueUSD, r.MarketCap, r.Liquidity,
		r.ProfitUSD, r.ProfitPercent, r.MarketCapChange, r.LiquidityChange,
		r.RapidDump, r.IsSimulation, r.TxHash, r.BuyTradeID,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", r.ID, err)
	}
	return nil
}

// LatestOpenBuy returns the most recent buy record for the token, recommender,
// and simulation flag that no sell record references. It returns
// domain.ErrNoOpenTrade when no such record exists.
func (s *TradeStore) LatestOpenBuy(ctx context.Context, tokenAddress, recommenderID string, isSimulation bool) (domain.TradeRecord, error) {
	const query = `
		SELECT ` + tradeSelectCols + ` FROM trade_records b
		WHERE b.token_address = $1
		  AND b.recommender_id IS NOT DISTINCT FROM NULLIF($2, '')::uuid
		  AND b.is_simulation = $3
		  AND b.direction = 'buy'
		  AND NOT EXISTS (
			SELECT 1 FROM trade_records s
			WHERE s.direction = 'sell' AND s.buy_trade_id = b.id
		  )
		ORDER BY b.executed_at DESC
		LIMIT 1`

	row := s.pool.QueryRow(ctx, query, tokenAddress, recommenderID, isSimulation)
	r, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeRecord{}, domain.ErrNoOpenTrade
		}
		return domain.TradeRecord{}, fmt.Errorf("postgres: latest open buy %s: %w", tokenAddress, err)
	}
	return r, nil
}

// ListByToken returns the newest trade records for the token.
func (s *TradeStore) ListByToken(ctx context.Context, tokenAddress string, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trade_records
		 WHERE token_address = $1
		 ORDER BY executed_at DESC
		 LIMIT $2`, tokenAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades %s: %w", tokenAddress, err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// ListBefore returns all trade records executed strictly before the cutoff.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trade_records
		 WHERE executed_at < $1
		 ORDER BY executed_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// DeleteBefore removes trade records executed strictly before the cutoff and
// returns the number of rows deleted. Intended to run only after the records
// have been archived to cold storage.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trade_records WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func collectTrades(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		r, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		trades = append(trades, r)
	}
	return trades, rows.Err()
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
