package model

import "time"

// MarketSnapshot is a read-only 24h view of one symbol, owned by the
// market data provider.
type MarketSnapshot struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"` // percent
	Volume24h float64   `json:"volume_24h"` // quote currency
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StrategyConfig is the per-cycle configuration handed to the strategy.
// It is a value, never process-wide mutable state.
type StrategyConfig struct {
	MaxPositionValue float64
	WatchedSymbols   []string
	AlgorithmEnabled bool
}
