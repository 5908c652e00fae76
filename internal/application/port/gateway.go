package port

import (
	"context"

	"tradepilot/internal/domain/model"
)

// ExecutionResult is the exchange's report for a submitted order.
// ExecutedPrice is taken from the first reported fill; multi-fill
// orders are not price-averaged.
type ExecutionResult struct {
	ExchangeOrderID string
	ExecutedQty     float64
	ExecutedPrice   float64
	Status          string
}

// ExchangeGateway builds, signs and submits orders. It performs no
// deduplication of its own: the ledger's single-approval guarantee is
// the only idempotency barrier, so a gateway must never be invoked
// twice for one approved trade.
type ExchangeGateway interface {
	SubmitOrder(ctx context.Context, trade *model.Trade) (*ExecutionResult, error)
}
