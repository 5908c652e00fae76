package port

import (
	"context"

	"tradepilot/internal/domain/model"
)

// MarketData supplies the read-only market view an evaluation cycle
// consumes.
type MarketData interface {
	GetSnapshot(ctx context.Context) (map[string]model.MarketSnapshot, error)
}

// Tick is one live price update from an exchange stream.
type Tick struct {
	Symbol   string  // base coin, e.g. "BTC"
	PriceStr string  // raw string as received
	PriceNum float64 // parsed (best-effort)
	Ts       int64   // unix ms
}

// PriceFeed streams live ticks for a set of coins until ctx is done.
type PriceFeed interface {
	Name() string
	Subscribe(ctx context.Context, coins []string) (<-chan Tick, error)
}
