package domain

import "time"

// Position represents a held balance of a tradable SPL token. The token
// address is the unique key; a position is considered fully liquidated when
// its balance reaches exactly zero.
type Position struct {
	TokenAddress     string
	Balance          float64
	InitialMarketCap float64
	RecommenderID    string
	IsSimulation     bool
	UpdatedAt        time.Time
}

// Open reports whether the position still holds a non-zero balance.
func (p Position) Open() bool {
	return p.Balance > 0
}
