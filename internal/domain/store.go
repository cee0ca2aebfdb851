package domain

import (
	"context"
	"time"
)

// PositionStore persists per-token position state. Balance mutations go
// exclusively through UpdateBalance so the ledger remains the single
// authority on held amounts.
type PositionStore interface {
	Get(ctx context.Context, tokenAddress string) (Position, error)
	Upsert(ctx context.Context, pos Position) error
	ListWithBalance(ctx context.Context) ([]Position, error)
	UpdateBalance(ctx context.Context, tokenAddress string, newBalance float64) error
}

// TradeStore persists the append-only trade history.
type TradeStore interface {
	Insert(ctx context.Context, rec TradeRecord) error
	// LatestOpenBuy returns the most recent buy record for the given token,
	// recommender, and simulation flag that has no sell referencing it.
	LatestOpenBuy(ctx context.Context, tokenAddress, recommenderID string, isSimulation bool) (TradeRecord, error)
	ListByToken(ctx context.Context, tokenAddress string, limit int) ([]TradeRecord, error)
	// ListBefore and DeleteBefore support cold-storage archival of aged
	// records.
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// RecommenderStore persists recommenders and their token recommendations.
type RecommenderStore interface {
	// GetOrCreate returns the recommender for the given platform identity,
	// creating it on first reference.
	GetOrCreate(ctx context.Context, platform, platformID string) (Recommender, error)
	GetByID(ctx context.Context, id string) (Recommender, error)
	InsertRecommendation(ctx context.Context, rec Recommendation) error
	// RecommendationsForToken returns recommendations for the token, newest
	// first.
	RecommendationsForToken(ctx context.Context, tokenAddress string) ([]Recommendation, error)
}

// AuditEntry is a single operational audit event.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}
