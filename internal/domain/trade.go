package domain

import "time"

// TradeDirection distinguishes the two legs of a round trip.
type TradeDirection string

const (
	TradeDirectionBuy  TradeDirection = "buy"
	TradeDirectionSell TradeDirection = "sell"
)

// TradeRecord is a historical buy or sell event. Records are append-only:
// a sell never mutates its paired buy, it references it through BuyTradeID
// and carries the deltas computed against it.
type TradeRecord struct {
	ID            string
	TokenAddress  string
	RecommenderID string
	Direction     TradeDirection
	ExecutedAt    time.Time
	Price         float64
	Amount        float64
	ValueUSD      float64
	MarketCap     float64
	Liquidity     float64

	// Sell-only fields, zero for buys.
	ProfitUSD       float64
	ProfitPercent   float64
	MarketCapChange float64
	LiquidityChange float64
	RapidDump       bool
	BuyTradeID      *string

	IsSimulation bool
	TxHash       string
}

// SellDecision is the transient value object built per liquidation attempt:
// a snapshot of the target position, the amount to sell, and the recommender
// the sale is attributed to. It is never persisted.
type SellDecision struct {
	Position      Position
	Amount        float64
	RecommenderID string
}

// SellOutcome carries the computed sell economics back to the caller.
type SellOutcome struct {
	TokenAddress    string
	RecommenderID   string
	Amount          float64
	SellPrice       float64
	SellValueUSD    float64
	SellValueQuote  float64
	ProfitUSD       float64
	ProfitPercent   float64
	MarketCapChange float64
	LiquidityChange float64
	RapidDump       bool
	BalanceLeft     float64
	IsSimulation    bool
	TxHash          string
	ExecutedAt      time.Time
}
