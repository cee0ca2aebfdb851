package domain

import "time"

// Recommender is an attribution entity keyed by an external identifier,
// typically a messaging-platform user id. Identity is immutable; metadata
// such as the username may change.
type Recommender struct {
	ID         string
	Platform   string
	PlatformID string
	Username   string
	CreatedAt  time.Time
}

// Recommendation links a recommender to a token together with the market
// conditions observed when the recommendation was made.
type Recommendation struct {
	ID               string
	RecommenderID    string
	TokenAddress     string
	InitialMarketCap float64
	InitialLiquidity float64
	InitialPrice     float64
	CreatedAt        time.Time
}
